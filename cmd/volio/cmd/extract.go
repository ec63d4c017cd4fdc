package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsarc/volio/archerr"
	"github.com/fsarc/volio/config"
	"github.com/fsarc/volio/frame"
	"github.com/fsarc/volio/payload/comp"
	"github.com/fsarc/volio/volreader"
)

// Extract implements the "extract" subcommand: replay an archive's
// OBJH/DBLK/BLKE record sequence, reconstructing each archived file under
// destdir using the name carried in its object header.
func Extract(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return fmt.Errorf("extract: usage: volio extract <basepath> <destdir>")
	}
	basepath, destdir := rest[0], rest[1]

	r, err := volreader.Open(basepath, config.Defaults(), nil)
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		current *os.File
		mode    os.FileMode = 0644
	)
	defer func() {
		if current != nil {
			current.Close()
		}
	}()

	for {
		h, payload, sumok, err := r.Next(false)
		if archerr.Is(err, archerr.EndOfArchive) {
			break
		}
		if err != nil {
			if archerr.Is(err, archerr.Minor) {
				fmt.Fprintf(out, "extract: skipped corrupt record: %v\n", err)
				continue
			}
			return err
		}

		switch h.Magic {
		case frame.MagicObject:
			if current != nil {
				current.Close()
				current = nil
			}
			name, _ := h.Dico.GetString(frame.SectionObject, frame.KeyObjectName)
			modeBits, _ := h.Dico.GetU32(frame.SectionObject, frame.KeyObjectMode)
			mode = os.FileMode(modeBits)
			dest := filepath.Join(destdir, filepath.FromSlash(name))
			if mode.IsDir() {
				if err := os.MkdirAll(dest, mode.Perm()|0700); err != nil {
					return archerr.E(archerr.Fatal, "extract: mkdir "+dest, err)
				}
				continue
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return archerr.E(archerr.Fatal, "extract: mkdir parent of "+dest, err)
			}
			f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
			if err != nil {
				return archerr.E(archerr.Fatal, "extract: create "+dest, err)
			}
			current = f
			fmt.Fprintf(out, "%s\n", dest)

		case frame.MagicDataBlock:
			if current == nil {
				return archerr.E(archerr.Fatal, "extract: data block with no open object")
			}
			if !sumok {
				return archerr.E(archerr.Fatal, "extract: unrecoverable payload checksum mismatch")
			}
			info, ierr := frame.BlockInfoFromDico(h.Dico)
			if ierr != nil {
				return archerr.E(archerr.Fatal, "extract: decode block info", ierr)
			}
			plain, derr := comp.Decompress(comp.Algo(info.CompAlgo), payload, int(info.Size))
			if derr != nil {
				return archerr.E(archerr.Fatal, "extract: decompress block", derr)
			}
			if _, err := current.WriteAt(plain, int64(info.Offset)); err != nil {
				return archerr.E(archerr.Fatal, "extract: write block", err)
			}

		case frame.MagicBlockEnd:
			if current != nil {
				if err := current.Close(); err != nil {
					return archerr.E(archerr.Fatal, "extract: close output file", err)
				}
				current = nil
			}
		}
	}
	return nil
}
