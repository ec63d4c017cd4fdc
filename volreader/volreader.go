// Package volreader implements the reader engine of spec.md §4.6: it scans
// for records, validates and decodes them, tracks per-session state
// adopted from the first volume (archive-id, format version), and follows
// split volumes across EOF/footer transitions. It is grounded on the
// teacher's recordio scanner (recordio/scannerv2.go) generalized from a
// single-stream scan to the multi-volume resync-and-advance behavior
// archreader_read_header/archreader_read_block implement in archreader.c.
package volreader

import (
	"encoding/binary"

	"github.com/fsarc/volio/archerr"
	"github.com/fsarc/volio/cache"
	"github.com/fsarc/volio/checksum"
	"github.com/fsarc/volio/config"
	"github.com/fsarc/volio/frame"
	"github.com/fsarc/volio/scan"
	"github.com/fsarc/volio/transport"
	"github.com/fsarc/volio/vlog"
	"github.com/fsarc/volio/volpath"
)

// Reader replays the framed record stream of one archive across its
// volumes. Like Writer, it is single-threaded per spec.md §5 and not safe
// for concurrent use.
type Reader struct {
	basepath string
	opts     config.Options
	abort    scan.AbortFunc

	archiveID     uint32
	haveArchiveID bool
	version       frame.FormatVersion
	haveVersion   bool
	progVer       string

	curvol int
	tr     transport.Transport
	cache  *cache.Cache

	last archerr.Once
}

// Open opens volume 0 at basepath, scans for its volume-header magic,
// detects the on-wire format version, and validates the header (spec.md
// §4.6 "read_volume_header(expected_volnum=0)").
func Open(basepath string, opts config.Options, abort scan.AbortFunc) (*Reader, error) {
	opts = opts.WithDefaults()
	path := volpath.ForVolume(basepath, 0)
	// DevBlockSize is left at 0 so Block/Tape variants query the real device
	// quantum themselves; opts.DataBlockSize is the cache growth quantum, a
	// distinct knob.
	tr, err := transport.Open(path, transport.ModeRead, transport.OpenOptions{})
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "volreader: open volume 0 at "+path, err)
	}
	r := &Reader{basepath: basepath, opts: opts, abort: abort, tr: tr}
	r.cache = cache.New(tr, opts.DataBlockSize, tr.DevBlockSize())
	if err := r.readVolumeHeader(0, true); err != nil {
		r.last.Set(err)
		_ = tr.Close()
		return nil, err
	}
	vlog.Info.Printf("volreader: opened volume 0 at %s, format version %d", path, r.version)
	return r, nil
}

// ArchiveID, FormatVersion, and ProgVersion return the session-wide values
// adopted from volume 0's header.
func (r *Reader) ArchiveID() uint32                  { return r.archiveID }
func (r *Reader) FormatVersion() frame.FormatVersion { return r.version }
func (r *Reader) ProgVersion() string                { return r.progVer }
func (r *Reader) CurVol() int                        { return r.curvol }

// Close releases the current volume's transport and cache.
func (r *Reader) Close() error {
	r.cache.Close()
	if r.tr != nil {
		return r.tr.Close()
	}
	return nil
}

// Next reads the next caller-visible record, transparently following
// volume-footer/volume-header transitions (spec.md §4.6 "Volume advance").
// If skipPayload is true and the record is a data block, its payload is
// skipped on the transport rather than read into memory (read_block's
// skip_flag). EndOfArchive is returned as an *archerr.Error of that Kind
// when the terminal footer (lastvol=true) is observed.
func (r *Reader) Next(skipPayload bool) (frame.Header, []byte, bool, error) {
	if err := r.last.Err(); err != nil {
		return frame.Header{}, nil, false, err
	}
	for {
		if r.abort != nil && r.abort() {
			err := archerr.E(archerr.Fatal, "volreader: aborted")
			r.last.Set(err)
			return frame.Header{}, nil, false, err
		}
		h, err := r.readHeaderRecord()
		if err != nil {
			if archerr.KindOf(err) == archerr.Fatal {
				r.last.Set(err)
			}
			return frame.Header{}, nil, false, err
		}
		switch h.Magic {
		case frame.MagicVolFooter:
			lastvol, _ := h.Dico.GetBool(frame.SectionVolume, frame.KeyLastVol)
			if lastvol {
				err := archerr.E(archerr.EndOfArchive, "volreader: end of archive")
				r.last.Set(err)
				return frame.Header{}, nil, false, err
			}
			if err := r.advanceVolume(); err != nil {
				r.last.Set(err)
				return frame.Header{}, nil, false, err
			}
			continue
		case frame.MagicDataBlock:
			payload, sumok, err := r.readBlockPayload(h, skipPayload)
			if err != nil {
				r.last.Set(err)
				return h, nil, false, err
			}
			return h, payload, sumok, nil
		default:
			return h, nil, true, nil
		}
	}
}

// readHeaderRecord implements the per-record state machine of spec.md
// §4.7: SCAN_MAGIC -> READ_HEADER_LEN -> READ_HEADER_BYTES ->
// READ_HEADER_CSUM -> DECODE_DICO.
func (r *Reader) readHeaderRecord() (frame.Header, error) {
	magic, err := scan.FindMagic(r.cache, r.abort)
	if err != nil {
		return frame.Header{}, err
	}
	if _, err := r.cache.Read(4); err != nil {
		return frame.Header{}, archerr.E(archerr.Fatal, "volreader: consume magic", err)
	}

	fixedLen := 4 + 2 + 4
	if r.version == frame.FormatVersion1 {
		fixedLen = 4 + 2 + 2
	}
	fixed, ferr := r.cache.Read(fixedLen)
	if len(fixed) < fixedLen {
		return frame.Header{}, archerr.E(archerr.Fatal, "volreader: truncated header fields", ferr)
	}
	archiveID, fsid, headerLen, _, derr := frame.DecodeHeaderFields(fixed, r.version)
	if derr != nil {
		return frame.Header{}, archerr.E(archerr.Fatal, "volreader: decode header fields", derr)
	}

	body, berr := r.cache.Read(int(headerLen) + 4)
	if len(body) < int(headerLen)+4 {
		return frame.Header{}, archerr.E(archerr.Fatal, "volreader: truncated header body", berr)
	}
	wantSum := binary.LittleEndian.Uint32(body[headerLen:])
	d, verr := frame.VerifyAndDecodeBody(body[:headerLen], wantSum)
	if verr != nil {
		if verr == frame.ErrChecksum {
			return frame.Header{}, archerr.E(archerr.Minor, "volreader: header checksum mismatch for magic "+magic.String())
		}
		return frame.Header{}, archerr.E(archerr.Fatal, "volreader: decode header dictionary", verr)
	}

	if r.haveArchiveID && archiveID != r.archiveID && magic != frame.MagicVolHeader {
		return frame.Header{}, archerr.E(archerr.Minor, "volreader: archive-id mismatch")
	}
	return frame.Header{Magic: magic, ArchiveID: archiveID, FilesystemID: fsid, Dico: d}, nil
}

// readBlockPayload implements spec.md §4.6 "read_block(block_header_dico,
// skip_flag)".
func (r *Reader) readBlockPayload(h frame.Header, skipPayload bool) ([]byte, bool, error) {
	info, err := frame.BlockInfoFromDico(h.Dico)
	if err != nil {
		return nil, false, archerr.E(archerr.Fatal, "volreader: decode block info", err)
	}
	if skipPayload {
		if err := r.cache.Skip(int64(info.ArchivedSize)); err != nil {
			return nil, false, archerr.E(archerr.Fatal, "volreader: skip block payload", err)
		}
		return nil, true, nil
	}
	region, rerr := r.cache.Read(int(info.ArchivedSize))
	if len(region) < int(info.ArchivedSize) {
		return nil, false, archerr.E(archerr.Fatal, "volreader: truncated block payload", rerr)
	}
	if checksum.Checksum(region) == info.ArchivedChecksum {
		payload := make([]byte, len(region))
		copy(payload, region)
		return payload, true, nil
	}
	// Payload corrupt: rewind so resynchronization can rescan from just past
	// the block header, and never forward the corrupt bytes to the caller
	// (spec.md §4.6 "zero-fill the returned buffer").
	if err := r.cache.Unread(len(region)); err != nil {
		return nil, false, archerr.E(archerr.Fatal, "volreader: unread corrupt block payload", err)
	}
	return make([]byte, info.ArchivedSize), false, nil
}

// readVolumeHeader validates a volume header per spec.md §4.6's five
// steps. On firstVolume it also detects the on-wire format version by
// probing the header region before decoding (scan.FindVolumeHeader's
// role); later volumes already know the version.
func (r *Reader) readVolumeHeader(expectedVolnum int, firstVolume bool) error {
	if firstVolume {
		version, err := scan.FindVolumeHeader(r.cache, r.abort)
		if err != nil {
			return err
		}
		r.version = version
	}
	h, err := r.readHeaderRecord()
	if err != nil {
		return err
	}
	if h.Magic != frame.MagicVolHeader {
		return archerr.E(archerr.Fatal, "volreader: expected volume-header magic, got "+h.Magic.String())
	}
	archiveID, _ := h.Dico.GetU32(frame.SectionVolume, frame.KeyArchiveID)
	if !r.haveArchiveID {
		r.archiveID = archiveID
		r.haveArchiveID = true
	} else if archiveID != r.archiveID {
		return archerr.E(archerr.Fatal, "volreader: archive-id mismatch on volume header, expected", r.archiveID, "got", archiveID)
	}
	volnum, _ := h.Dico.GetU32(frame.SectionVolume, frame.KeyVolNum)
	if int(volnum) != expectedVolnum {
		return archerr.E(archerr.Fatal, "volreader: expected volume number", expectedVolnum, "got", volnum)
	}
	fmtver, _ := h.Dico.GetU16(frame.SectionVolume, frame.KeyFormatVersion)
	if !r.haveVersion {
		r.version = frame.FormatVersion(fmtver)
		r.haveVersion = true
	} else if frame.FormatVersion(fmtver) != r.version {
		return archerr.E(archerr.Fatal, "volreader: format-version mismatch, adopted", r.version, "got", fmtver)
	}
	if progVer, ok := h.Dico.GetString(frame.SectionVolume, frame.KeyProgVersion); ok && r.progVer == "" {
		r.progVer = progVer
	}
	return nil
}

// advanceVolume closes the current volume, opens curvol+1, and validates
// its header (spec.md §4.6 "Volume advance").
func (r *Reader) advanceVolume() error {
	if err := r.tr.Close(); err != nil {
		return archerr.E(archerr.Fatal, "volreader: close volume before advance", err)
	}
	r.cache.Close()
	next := r.curvol + 1
	path := volpath.ForVolume(r.basepath, next)
	tr, err := transport.Open(path, transport.ModeRead, transport.OpenOptions{})
	if err != nil {
		return archerr.E(archerr.Fatal, "volreader: open volume "+path, err)
	}
	r.tr = tr
	r.cache = cache.New(tr, r.opts.DataBlockSize, tr.DevBlockSize())
	r.curvol = next
	if err := r.readVolumeHeader(next, false); err != nil {
		return err
	}
	vlog.Info.Printf("volreader: advanced to volume %d at %s", next, path)
	return nil
}
