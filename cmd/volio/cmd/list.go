package cmd

import (
	"flag"
	"fmt"
	"io"

	"github.com/fsarc/volio/archerr"
	"github.com/fsarc/volio/config"
	"github.com/fsarc/volio/frame"
	"github.com/fsarc/volio/volreader"
)

// List implements the "list" subcommand: scan every volume of an archive
// and print its record sequence (magic, filesystem-id, and for object
// headers the archived name), skipping block payloads entirely.
func List(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return fmt.Errorf("list: usage: volio list <basepath>")
	}
	basepath := rest[0]

	r, err := volreader.Open(basepath, config.Defaults(), nil)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintf(out, "archive-id=%d format-version=%d prog-version=%q\n", r.ArchiveID(), r.FormatVersion(), r.ProgVersion())

	var count int
	for {
		h, _, _, err := r.Next(true)
		if archerr.Is(err, archerr.EndOfArchive) {
			break
		}
		if err != nil {
			if archerr.Is(err, archerr.Minor) {
				fmt.Fprintf(out, "  [skipped corrupt record: %v]\n", err)
				continue
			}
			return err
		}
		count++
		switch h.Magic {
		case frame.MagicObject:
			name, _ := h.Dico.GetString(frame.SectionObject, frame.KeyObjectName)
			fmt.Fprintf(out, "vol=%d %s fsid=%d name=%q\n", r.CurVol(), h.Magic, h.FilesystemID, name)
		default:
			fmt.Fprintf(out, "vol=%d %s fsid=%d\n", r.CurVol(), h.Magic, h.FilesystemID)
		}
	}
	fmt.Fprintf(out, "%d records across %d volume(s)\n", count, r.CurVol()+1)
	return nil
}
