package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"

	"github.com/fsarc/volio/archerr"
	"github.com/fsarc/volio/checksum"
	"github.com/fsarc/volio/config"
	"github.com/fsarc/volio/frame"
	"github.com/fsarc/volio/frame/dico"
	"github.com/fsarc/volio/payload/comp"
	"github.com/fsarc/volio/volwriter"
)

const progVersion = "volio-1.0"

// fsID is the fixed filesystem-id this CLI attaches to every object/block
// record; volio packs a flat file list, not a multi-filesystem image, so
// there is exactly one logical "filesystem" per archive.
const fsID = 0

// Create implements the "create" subcommand: pack one or more files into
// a new archive at basepath, one volume-header/MAIN/OBJH+DBLK...+BLKE.../
// volume-footer stream (spec.md §4.5's writer operations), optionally filtered by
// --fs-filter and split by --splitsize.
func Create(_ io.Writer, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	splitSize := fs.Int64("splitsize", 0, "per-volume byte cap; 0 = unlimited")
	dataBlockSize := fs.Int("datablocksize", config.DefaultDataBlockSize, "lookahead-cache growth quantum in bytes")
	overwrite := fs.Bool("overwrite", false, "allow replacing an existing archive")
	filterExpr := fs.String("fs-filter", "", "glob pattern; only matching input paths are archived")
	compress := fs.Bool("compress", false, "flate-compress block payloads")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("create: usage: volio create <basepath> <file>...")
	}
	basepath, inputs := rest[0], rest[1:]

	var filter glob.Glob
	if *filterExpr != "" {
		g, err := glob.Compile(*filterExpr)
		if err != nil {
			return fmt.Errorf("create: compile --fs-filter: %w", err)
		}
		filter = g
	}

	opts := config.Options{DataBlockSize: *dataBlockSize, SplitSize: *splitSize, Overwrite: *overwrite}
	archiveID := uint32(time.Now().UnixNano()) ^ uint32(os.Getpid())
	w := volwriter.New(basepath, archiveID, frame.FormatVersion2, progVersion, opts)
	if err := w.Open(); err != nil {
		return err
	}

	if err := writeMainHeader(w); err != nil {
		_ = w.Remove()
		return err
	}

	for _, path := range inputs {
		if filter != nil && !filter.Match(path) {
			continue
		}
		if err := writeObject(w, path, *compress); err != nil {
			_ = w.Remove()
			return err
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	for _, v := range w.Vollist() {
		fmt.Println(v)
	}
	return nil
}

func writeMainHeader(w *volwriter.Writer) error {
	d := dico.New()
	if err := d.AddString(frame.SectionVolume, frame.KeyProgVersion, progVersion); err != nil {
		return archerr.E(archerr.Fatal, "create: build main header", err)
	}
	return w.WriteHeader(frame.MagicMain, frame.NonFilesystemID, d)
}

// writeObject emits one OBJH header (name + mode) followed by zero or more
// DBLK block records of at most 1 MiB of input each (none for an empty or
// non-regular file), then a BLKE marker, matching archwriter's per-object-then-per-block emission order.
func writeObject(w *volwriter.Writer, path string, compress bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return archerr.E(archerr.Fatal, "create: stat "+path, err)
	}
	d := dico.New()
	if err := d.AddString(frame.SectionObject, frame.KeyObjectName, filepath.ToSlash(path)); err != nil {
		return archerr.E(archerr.Fatal, "create: build object header", err)
	}
	if err := d.AddU32(frame.SectionObject, frame.KeyObjectMode, uint32(info.Mode())); err != nil {
		return archerr.E(archerr.Fatal, "create: build object header", err)
	}
	if err := w.WriteHeader(frame.MagicObject, fsID, d); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return w.WriteHeader(frame.MagicBlockEnd, fsID, dico.New())
	}

	f, err := os.Open(path)
	if err != nil {
		return archerr.E(archerr.Fatal, "create: open "+path, err)
	}
	defer f.Close()

	const chunkSize = 1 << 20
	buf := make([]byte, chunkSize)
	var offset uint64
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			archived := chunk
			algo := comp.None
			if compress {
				algo = comp.Flate
				archived, err = comp.Compress(algo, 0, chunk)
				if err != nil {
					return archerr.E(archerr.Fatal, "create: compress block", err)
				}
			}
			bi := frame.BlockInfo{
				Offset:           offset,
				Size:             uint64(n),
				CompAlgo:         uint16(algo),
				ArchivedSize:     uint64(len(archived)),
				ArchivedChecksum: checksum.Checksum(archived),
			}
			if err := w.WriteBlock(fsID, bi, archived); err != nil {
				return err
			}
			offset += uint64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return archerr.E(archerr.Fatal, "create: read "+path, rerr)
		}
	}
	return w.WriteHeader(frame.MagicBlockEnd, fsID, dico.New())
}
