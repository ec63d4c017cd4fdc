package volreader_test

import (
	"path/filepath"
	"testing"

	"github.com/fsarc/volio/archerr"
	"github.com/fsarc/volio/checksum"
	"github.com/fsarc/volio/config"
	"github.com/fsarc/volio/frame"
	"github.com/fsarc/volio/frame/dico"
	"github.com/fsarc/volio/volreader"
	"github.com/fsarc/volio/volwriter"
)

func writeSample(t *testing.T, basepath string, opts config.Options) *volwriter.Writer {
	t.Helper()
	w := volwriter.New(basepath, 0x1234, frame.FormatVersion2, "volio-test", opts)
	if err := w.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	mainDico := dico.New()
	_ = mainDico.AddString(frame.SectionVolume, frame.KeyProgVersion, "volio-test")
	if err := w.WriteHeader(frame.MagicMain, frame.NonFilesystemID, mainDico); err != nil {
		t.Fatalf("WriteHeader(MAIN): %v", err)
	}
	for i := 0; i < 5; i++ {
		objDico := dico.New()
		_ = objDico.AddString(frame.SectionObject, frame.KeyObjectName, "file")
		if err := w.WriteHeader(frame.MagicObject, uint16(i), objDico); err != nil {
			t.Fatalf("WriteHeader(OBJH %d): %v", i, err)
		}
		payload := []byte("payload number")
		payload = append(payload, byte('0'+i))
		bi := frame.BlockInfo{
			Size:             uint64(len(payload)),
			ArchivedSize:     uint64(len(payload)),
			ArchivedChecksum: checksum.Checksum(payload),
		}
		if err := w.WriteBlock(uint16(i), bi, payload); err != nil {
			t.Fatalf("WriteBlock %d: %v", i, err)
		}
		if err := w.WriteHeader(frame.MagicBlockEnd, uint16(i), dico.New()); err != nil {
			t.Fatalf("WriteHeader(BLKE %d): %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return w
}

func TestSingleVolumeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	basepath := filepath.Join(dir, "archive.fsa")
	opts := config.Defaults()
	writeSample(t, basepath, opts)

	r, err := volreader.Open(basepath, opts, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var magics []frame.Magic
	for {
		h, _, sumok, err := r.Next(false)
		if archerr.Is(err, archerr.EndOfArchive) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if h.Magic == frame.MagicDataBlock && !sumok {
			t.Fatalf("unexpected checksum mismatch on clean archive")
		}
		magics = append(magics, h.Magic)
	}

	want := []frame.Magic{frame.MagicMain}
	for i := 0; i < 5; i++ {
		want = append(want, frame.MagicObject, frame.MagicDataBlock, frame.MagicBlockEnd)
	}
	if len(magics) != len(want) {
		t.Fatalf("got %d records, want %d", len(magics), len(want))
	}
	for i := range want {
		if magics[i] != want[i] {
			t.Errorf("record %d: got %v, want %v", i, magics[i], want[i])
		}
	}
	if r.CurVol() != 0 {
		t.Errorf("expected single volume, CurVol()=%d", r.CurVol())
	}
}

func TestMultiVolumeSplitRoundTrip(t *testing.T) {
	dir := t.TempDir()
	basepath := filepath.Join(dir, "archive.fsa")
	opts := config.Defaults()
	opts.SplitSize = 64 // force rollover across several volumes
	w := writeSample(t, basepath, opts)

	if len(w.Vollist()) < 2 {
		t.Fatalf("expected splitsize=64 to force multiple volumes, got %d", len(w.Vollist()))
	}

	r, err := volreader.Open(basepath, opts, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var objectCount int
	for {
		h, _, _, err := r.Next(true)
		if archerr.Is(err, archerr.EndOfArchive) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if h.Magic == frame.MagicObject {
			objectCount++
		}
	}
	if objectCount != 5 {
		t.Fatalf("expected 5 object headers across volumes, got %d", objectCount)
	}
	if r.CurVol() != len(w.Vollist())-1 {
		t.Errorf("reader ended on volume %d, writer produced %d volumes", r.CurVol(), len(w.Vollist()))
	}
}

func TestArchiveIDAdoptedFromVolumeHeader(t *testing.T) {
	dir := t.TempDir()
	basepath := filepath.Join(dir, "archive.fsa")
	opts := config.Defaults()
	writeSample(t, basepath, opts)

	r, err := volreader.Open(basepath, opts, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.ArchiveID() != 0x1234 {
		t.Fatalf("expected adopted archive id 0x1234, got %x", r.ArchiveID())
	}
}
