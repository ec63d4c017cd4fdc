// Package scan implements the magic scanner and corruption-resync
// algorithm of spec.md §4.4: it locates the next valid record boundary on
// a byte stream that may be corrupt, and -- for the very first pull of a
// session -- detects which on-wire format version produced the stream.
package scan

import (
	"io"

	"github.com/fsarc/volio/archerr"
	"github.com/fsarc/volio/cache"
	"github.com/fsarc/volio/frame"
)

// AbortFunc polls the process-wide user-abort flag (spec.md §5). A true
// result aborts the current scan with a Fatal error.
type AbortFunc func() bool

// initialWindow is the first pull size: exactly one magic's width, so the
// common case (a clean stream) finds its magic on the very first read.
const initialWindow = 4

// FindMagic scans forward from the cache's current position until a
// 4-byte window matches a member of the closed magic set, per spec.md
// §4.4:
//
//  1. Pull 4 bytes; slide a 4-byte window across buffered bytes; test each
//     window.
//  2. If none match, unread 3 bytes (so the next pull overlaps possible
//     split magics), grow the next pull to frame.FSACacheHeader bytes, and
//     continue.
//  3. When a magic is found at window position i, unread so the next
//     read(4) returns the magic in place, then return.
//
// On a clean return, the cache's next Read(4) yields exactly the found
// magic's bytes; FindMagic itself does not consume the magic.
func FindMagic(c *cache.Cache, abort AbortFunc) (frame.Magic, error) {
	window := initialWindow
	for {
		if abort != nil && abort() {
			return frame.Magic{}, archerr.E(archerr.Fatal, "scan: aborted")
		}
		region, rerr := c.Read(window)
		if len(region) < 4 {
			if rerr == io.EOF || rerr == nil {
				return frame.Magic{}, archerr.E(archerr.Fatal, "scan: end of stream before any valid magic")
			}
			return frame.Magic{}, archerr.E(archerr.Fatal, "scan: read error before any valid magic", rerr)
		}
		found := -1
		var magic frame.Magic
		for i := 0; i+4 <= len(region); i++ {
			if m, ok := frame.IsValidMagic(region[i : i+4]); ok {
				found = i
				magic = m
				break
			}
		}
		if found < 0 {
			// Keep the last 3 bytes in case a magic straddles this pull and
			// the next one.
			keep := 3
			if keep > len(region) {
				keep = len(region)
			}
			if err := c.Unread(keep); err != nil {
				return frame.Magic{}, archerr.E(archerr.Fatal, "scan: unread failed", err)
			}
			if rerr != nil {
				return frame.Magic{}, archerr.E(archerr.Fatal, "scan: stream ended while resynchronizing", rerr)
			}
			window = frame.FSACacheHeader
			continue
		}
		// Rewind so the magic starts exactly at the next read position.
		if err := c.Unread(len(region) - found); err != nil {
			return frame.Magic{}, archerr.E(archerr.Fatal, "scan: unread failed", err)
		}
		return magic, nil
	}
}

// FindVolumeHeader is FindMagic specialized for the first record of a
// session: after locating the volume-header magic, it probes for the
// format-version identifier string at the two possible offsets within the
// following frame.FSACacheHeader-byte region (spec.md §4.4
// "Format-version detection"). If neither offset carries a recognized
// string, scanning resumes one byte past that magic.
//
// On return, as with FindMagic, the cache's next Read(4) yields the
// volume-header magic.
func FindVolumeHeader(c *cache.Cache, abort AbortFunc) (frame.FormatVersion, error) {
	for {
		m, err := FindMagic(c, abort)
		if err != nil {
			return 0, err
		}
		if m != frame.MagicVolHeader {
			return 0, archerr.E(archerr.Fatal, "scan: expected volume-header magic, found", m)
		}
		region, rerr := c.Read(frame.FSACacheHeader)
		if uerr := c.Unread(len(region)); uerr != nil {
			return 0, archerr.E(archerr.Fatal, "scan: unread failed", uerr)
		}
		if version, ok := frame.ProbeFormatVersion(region); ok {
			return version, nil
		}
		if rerr != nil && rerr != io.EOF {
			return 0, archerr.E(archerr.Fatal, "scan: read error while probing format version", rerr)
		}
		if _, err := c.Read(1); err != nil {
			return 0, archerr.E(archerr.Fatal, "scan: read error while resynchronizing", err)
		}
	}
}
