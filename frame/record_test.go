package frame

import (
	"testing"

	"github.com/fsarc/volio/checksum"
	"github.com/fsarc/volio/frame/dico"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	for _, version := range []FormatVersion{FormatVersion1, FormatVersion2} {
		d := dico.New()
		_ = d.AddString(SectionVolume, KeyProgVersion, "volio-test")
		h := Header{Magic: MagicMain, ArchiveID: 42, FilesystemID: NonFilesystemID, Dico: d}
		buf, err := EncodeHeader(h, version)
		if err != nil {
			t.Fatalf("version %d: %v", version, err)
		}
		got, consumed, err := DecodeHeader(buf, version)
		if err != nil {
			t.Fatalf("version %d: %v", version, err)
		}
		if consumed != len(buf) {
			t.Errorf("version %d: consumed %d, want %d", version, consumed, len(buf))
		}
		if got.Magic != MagicMain || got.ArchiveID != 42 || got.FilesystemID != NonFilesystemID {
			t.Errorf("version %d: round trip fields mismatch: %+v", version, got)
		}
		if v, ok := got.Dico.GetString(SectionVolume, KeyProgVersion); !ok || v != "volio-test" {
			t.Errorf("version %d: dico round trip mismatch: %v %v", version, v, ok)
		}
	}
}

func TestDecodeHeaderRejectsChecksumMismatch(t *testing.T) {
	d := dico.New()
	_ = d.AddString(SectionVolume, KeyProgVersion, "x")
	h := Header{Magic: MagicMain, ArchiveID: 1, FilesystemID: NonFilesystemID, Dico: d}
	buf, err := EncodeHeader(h, FormatVersion2)
	if err != nil {
		t.Fatal(err)
	}
	buf[len(buf)-1] ^= 0xff
	if _, _, err := DecodeHeader(buf, FormatVersion2); err != ErrChecksum {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

func TestEncodeDecodeBlockRoundTrip(t *testing.T) {
	payload := []byte("archived payload bytes")
	info := BlockInfo{
		Offset:           0,
		Size:             uint64(len(payload)),
		ArchivedSize:     uint64(len(payload)),
		ArchivedChecksum: checksum.Checksum(payload),
	}
	buf, err := EncodeBlock(7, 0, info, payload, FormatVersion2)
	if err != nil {
		t.Fatal(err)
	}
	block, consumed, sumok, err := DecodeBlock(buf, FormatVersion2)
	if err != nil {
		t.Fatal(err)
	}
	if !sumok {
		t.Fatal("expected payload checksum to verify")
	}
	if consumed != len(buf) {
		t.Errorf("consumed %d, want %d", consumed, len(buf))
	}
	if string(block.Payload) != string(payload) {
		t.Errorf("payload mismatch: got %q", block.Payload)
	}
	gotInfo, err := BlockInfoFromDico(block.Header.Dico)
	if err != nil {
		t.Fatal(err)
	}
	if gotInfo.ArchivedChecksum != info.ArchivedChecksum {
		t.Errorf("ARCSUM mismatch: got %d want %d", gotInfo.ArchivedChecksum, info.ArchivedChecksum)
	}
}

func TestDecodeBlockDetectsCorruptPayload(t *testing.T) {
	payload := []byte("archived payload bytes")
	info := BlockInfo{
		Size:             uint64(len(payload)),
		ArchivedSize:     uint64(len(payload)),
		ArchivedChecksum: checksum.Checksum(payload),
	}
	buf, err := EncodeBlock(7, 0, info, payload, FormatVersion2)
	if err != nil {
		t.Fatal(err)
	}
	buf[len(buf)-1] ^= 0xff // flip a payload byte, not the header
	_, _, sumok, err := DecodeBlock(buf, FormatVersion2)
	if err != nil {
		t.Fatal(err)
	}
	if sumok {
		t.Fatal("expected payload checksum mismatch to be detected")
	}
}

// TestVolumeHeaderEmbedsFormatVersionString mirrors the attribute order
// volwriter.writeVolumeHeader builds (archive-id, vol-num, version string,
// then the rest) and checks the encoded record actually carries the
// bootstrap string at the offset ProbeFormatVersion reads, for both
// format versions.
func TestVolumeHeaderEmbedsFormatVersionString(t *testing.T) {
	for _, version := range []FormatVersion{FormatVersion1, FormatVersion2} {
		verstr, err := FormatVersionString(version)
		if err != nil {
			t.Fatal(err)
		}
		d := dico.New()
		_ = d.AddU32(SectionVolume, KeyArchiveID, 0x1234)
		_ = d.AddU32(SectionVolume, KeyVolNum, 0)
		_ = d.AddGeneric(SectionVolume, KeyFormatVersionString, []byte(verstr), dico.TypeRaw)
		_ = d.AddU16(SectionVolume, KeyFormatVersion, uint16(version))
		_ = d.AddString(SectionVolume, KeyProgVersion, "volio-test")

		rec, err := EncodeHeader(Header{Magic: MagicVolHeader, ArchiveID: 0x1234, FilesystemID: NonFilesystemID, Dico: d}, version)
		if err != nil {
			t.Fatalf("version %d: %v", version, err)
		}
		if len(rec) < FSACacheHeader {
			t.Fatalf("version %d: record is %d bytes, want >= %d", version, len(rec), FSACacheHeader)
		}
		gotVersion, ok := ProbeFormatVersion(rec[:FSACacheHeader])
		if !ok {
			t.Fatalf("version %d: ProbeFormatVersion found no version string in %x", version, rec[:FSACacheHeader])
		}
		if gotVersion != version {
			t.Errorf("version %d: ProbeFormatVersion returned %d", version, gotVersion)
		}

		got, _, err := DecodeHeader(rec, version)
		if err != nil {
			t.Fatalf("version %d: DecodeHeader: %v", version, err)
		}
		if fv, ok := got.Dico.GetU16(SectionVolume, KeyFormatVersion); !ok || FormatVersion(fv) != version {
			t.Errorf("version %d: KeyFormatVersion round trip mismatch: %v %v", version, fv, ok)
		}
	}
}

func TestBlockInfoFromDicoReportsMissingKeys(t *testing.T) {
	d := dico.New()
	_ = d.AddU64(SectionBlock, KeyBlockOffset, 0)
	if _, err := BlockInfoFromDico(d); err == nil {
		t.Fatal("expected error for missing required block keys")
	}
}
