// Package volwriter implements the writer engine of spec.md §4.5: it emits
// volume headers, volume footers, header records, and block records onto a
// transport, enforcing the split-volume discipline and tracking the list
// of volumes it created so an aborted session can clean up after itself.
// It is grounded on the teacher's recordio writer (recordio/writerv2.go)
// generalized from one sequential chunk stream to the volume-rollover
// behavior archwriter_write_header/archwriter_write_blocks implement in
// archwriter.c.
package volwriter

import (
	"os"

	"github.com/fsarc/volio/archerr"
	"github.com/fsarc/volio/config"
	"github.com/fsarc/volio/frame"
	"github.com/fsarc/volio/frame/dico"
	"github.com/fsarc/volio/transport"
	"github.com/fsarc/volio/vlog"
	"github.com/fsarc/volio/volpath"
)

// Writer emits the framed record stream for one archive across one or more
// volumes. It is single-threaded per spec.md §5 "Scheduling model" and not
// safe for concurrent use.
type Writer struct {
	basepath string
	archiveID uint32
	version  frame.FormatVersion
	progVer  string
	opts     config.Options

	curvol  int
	tr      transport.Transport
	vollist []string // paths this writer created; used by Remove

	currentpos int64 // logical bytes written into the current volume

	last archerr.Once
}

// New creates a writer for a fresh archive at basepath. archiveID should be
// a process-unique value (e.g. derived from time and pid by the caller);
// it is written into every volume header/footer and cross-checked by the
// reader.
func New(basepath string, archiveID uint32, version frame.FormatVersion, progVer string, opts config.Options) *Writer {
	opts = opts.WithDefaults()
	// The .fsa extension is forced only where the destination is, or will be
	// created as, a regular file; "-" and existing devices, sockets and fifos
	// keep their path.
	if basepath != "-" {
		if st, err := os.Stat(basepath); err != nil || st.Mode().IsRegular() {
			basepath = volpath.ForceExtension(basepath)
		}
	}
	return &Writer{
		basepath:  basepath,
		archiveID: archiveID,
		version:   version,
		progVer:   progVer,
		opts:      opts,
	}
}

// Open creates volume 0 and emits its volume header. It must be called
// once, before any WriteHeader/WriteBlock call.
func (w *Writer) Open() error {
	if err := w.last.Err(); err != nil {
		return err
	}
	if err := w.openVolume(0); err != nil {
		return w.fail(err)
	}
	return w.writeVolumeHeader()
}

func (w *Writer) openVolume(curvol int) error {
	path := volpath.ForVolume(w.basepath, curvol)
	if _, err := os.Stat(path); err == nil && !w.opts.Overwrite {
		return archerr.E(archerr.Fatal, path+" already exists, please remove it first or pass overwrite")
	}
	tr, err := transport.Open(path, transport.ModeWrite, transport.OpenOptions{
		// DevBlockSize is left at 0 so Block/Tape variants query the real
		// device quantum themselves; w.opts.DataBlockSize is the cache
		// growth quantum, a distinct knob.
		Overwrite: w.opts.Overwrite,
	})
	if err != nil {
		return archerr.E(archerr.Fatal, "volwriter: open volume "+path, err)
	}
	w.curvol = curvol
	w.tr = tr
	w.vollist = append(w.vollist, path)
	w.currentpos = 0
	vlog.Info.Printf("volwriter: opened volume %d at %s", curvol, path)
	return nil
}

// WriteHeader emits a header record (spec.md's write_header(dico, magic,
// fsid)), performing the split check first.
func (w *Writer) WriteHeader(magic frame.Magic, fsid uint16, d *dico.Dico) error {
	if err := w.last.Err(); err != nil {
		return err
	}
	rec, err := frame.EncodeHeader(frame.Header{Magic: magic, ArchiveID: w.archiveID, FilesystemID: fsid, Dico: d}, w.version)
	if err != nil {
		return w.fail(archerr.E(archerr.Fatal, "volwriter: encode header", err))
	}
	if err := w.splitIfNeeded(int64(len(rec))); err != nil {
		return w.fail(err)
	}
	return w.emit(rec)
}

// WriteBlock emits a data-block record (spec.md's write_block(blockinfo)).
// info.ArchivedSize and info.ArchivedChecksum must already describe
// payload (the caller's compression/encryption collaborators run upstream
// of this package).
func (w *Writer) WriteBlock(fsid uint16, info frame.BlockInfo, payload []byte) error {
	if err := w.last.Err(); err != nil {
		return err
	}
	rec, err := frame.EncodeBlock(w.archiveID, fsid, info, payload, w.version)
	if err != nil {
		return w.fail(archerr.E(archerr.Fatal, "volwriter: encode block", err))
	}
	if err := w.splitIfNeeded(int64(len(rec))); err != nil {
		return w.fail(err)
	}
	return w.emit(rec)
}

// splitIfNeeded implements spec.md §4.5 "Split discipline": record
// atomicity is preserved by never checking mid-record, only before each
// non-footer emission.
func (w *Writer) splitIfNeeded(recordSize int64) error {
	if w.opts.SplitSize <= 0 {
		return nil
	}
	if w.currentpos+recordSize <= w.opts.SplitSize {
		return nil
	}
	vlog.Info.Printf("volwriter: splitting at volume %d (currentpos=%d, next record=%d bytes, splitsize=%d)",
		w.curvol, w.currentpos, recordSize, w.opts.SplitSize)
	if err := w.writeVolumeFooter(false); err != nil {
		return err
	}
	if err := w.tr.Close(); err != nil {
		return archerr.E(archerr.Fatal, "volwriter: close volume before split", err)
	}
	if err := w.openVolume(w.curvol + 1); err != nil {
		return err
	}
	return w.writeVolumeHeader()
}

func (w *Writer) writeVolumeHeader() error {
	d := dico.New()
	if err := d.AddU32(frame.SectionVolume, frame.KeyArchiveID, w.archiveID); err != nil {
		return archerr.E(archerr.Fatal, "volwriter: build volume header dico", err)
	}
	if err := d.AddU32(frame.SectionVolume, frame.KeyVolNum, uint32(w.curvol)); err != nil {
		return archerr.E(archerr.Fatal, "volwriter: build volume header dico", err)
	}
	// The raw version string is added here, as the third attribute, so its
	// value falls at a fixed dico-body offset that scan.FindVolumeHeader
	// can probe before the dico itself is decodable (spec.md §6).
	verstr, err := frame.FormatVersionString(w.version)
	if err != nil {
		return archerr.E(archerr.Fatal, "volwriter: build volume header dico", err)
	}
	if err := d.AddGeneric(frame.SectionVolume, frame.KeyFormatVersionString, []byte(verstr), dico.TypeRaw); err != nil {
		return archerr.E(archerr.Fatal, "volwriter: build volume header dico", err)
	}
	if err := d.AddU16(frame.SectionVolume, frame.KeyFormatVersion, uint16(w.version)); err != nil {
		return archerr.E(archerr.Fatal, "volwriter: build volume header dico", err)
	}
	if err := d.AddString(frame.SectionVolume, frame.KeyProgVersion, w.progVer); err != nil {
		return archerr.E(archerr.Fatal, "volwriter: build volume header dico", err)
	}
	rec, err := frame.EncodeHeader(frame.Header{
		Magic: frame.MagicVolHeader, ArchiveID: w.archiveID, FilesystemID: frame.NonFilesystemID, Dico: d,
	}, w.version)
	if err != nil {
		return archerr.E(archerr.Fatal, "volwriter: encode volume header", err)
	}
	return w.emit(rec)
}

func (w *Writer) writeVolumeFooter(lastvol bool) error {
	d := dico.New()
	if err := d.AddU32(frame.SectionVolume, frame.KeyArchiveID, w.archiveID); err != nil {
		return archerr.E(archerr.Fatal, "volwriter: build volume footer dico", err)
	}
	if err := d.AddU32(frame.SectionVolume, frame.KeyVolNum, uint32(w.curvol)); err != nil {
		return archerr.E(archerr.Fatal, "volwriter: build volume footer dico", err)
	}
	if err := d.AddBool(frame.SectionVolume, frame.KeyLastVol, lastvol); err != nil {
		return archerr.E(archerr.Fatal, "volwriter: build volume footer dico", err)
	}
	rec, err := frame.EncodeHeader(frame.Header{
		Magic: frame.MagicVolFooter, ArchiveID: w.archiveID, FilesystemID: frame.NonFilesystemID, Dico: d,
	}, w.version)
	if err != nil {
		return archerr.E(archerr.Fatal, "volwriter: encode volume footer", err)
	}
	return w.emit(rec)
}

func (w *Writer) emit(rec []byte) error {
	n, err := w.tr.Write(rec)
	if err != nil {
		return archerr.E(archerr.Fatal, "volwriter: write record", err)
	}
	w.currentpos += int64(n)
	return nil
}

// Close emits the terminal volume footer (lastvol=true) and closes the
// current volume's transport. Close is idempotent after success; calling
// any other method afterward returns a terminal error.
func (w *Writer) Close() error {
	if err := w.last.Err(); err != nil {
		if archerr.Is(err, archerr.EndOfArchive) {
			return nil
		}
		return err
	}
	if err := w.writeVolumeFooter(true); err != nil {
		return w.fail(err)
	}
	if err := w.tr.Close(); err != nil {
		return w.fail(archerr.E(archerr.Fatal, "volwriter: close final volume", err))
	}
	w.last.Set(archerr.E(archerr.EndOfArchive, "volwriter: writer closed"))
	return nil
}

// Remove aborts the session: it closes the current volume (best-effort)
// and unlinks every volume path this writer created (spec.md §4.5
// "on abort (explicit remove), unlink only paths this writer created").
func (w *Writer) Remove() error {
	if w.tr != nil {
		_ = w.tr.Close()
	}
	var first error
	for _, path := range w.vollist {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && first == nil {
			first = err
		}
	}
	w.last.Set(archerr.E(archerr.Fatal, "volwriter: writer aborted"))
	if first != nil {
		return archerr.E(archerr.Fatal, "volwriter: cleanup after abort", first)
	}
	return nil
}

// Vollist returns the volume paths created so far, in creation order.
func (w *Writer) Vollist() []string {
	out := make([]string, len(w.vollist))
	copy(out, w.vollist)
	return out
}

func (w *Writer) fail(err error) error {
	w.last.Set(err)
	return err
}
