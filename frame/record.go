// Package frame implements the record framing codec: the length-prefixed,
// checksummed layout of header records and block records described in
// spec.md §4.3. It knows nothing about transports, caches, or scanning --
// it only encodes/decodes byte slices already known to start with a valid
// magic.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/willf/bitset"

	"github.com/fsarc/volio/checksum"
	"github.com/fsarc/volio/frame/dico"
)

// Header is a decoded header record (spec.md §3 "Header record").
type Header struct {
	Magic        Magic
	ArchiveID    uint32
	FilesystemID uint16
	Dico         *dico.Dico
}

// maxHeaderLenV1 bounds header-length in the v1 profile, whose on-wire
// field is a u16.
const maxHeaderLenV1 = 0xffff

// EncodeHeader serializes h per the v1/v2 layout (spec.md §4.3):
//
//	magic:           4 bytes ASCII
//	archive-id:      u32 LE
//	filesystem-id:   u16 LE
//	header-length:   u32 LE (v2) or u16 LE (v1)
//	header-bytes:    header-length bytes
//	header-checksum: u32 LE (Fletcher-32 over header-bytes)
func EncodeHeader(h Header, version FormatVersion) ([]byte, error) {
	body, err := h.Dico.Encode()
	if err != nil {
		return nil, err
	}
	if version == FormatVersion1 && len(body) > maxHeaderLenV1 {
		return nil, fmt.Errorf("frame: header-bytes is %d bytes, exceeds v1's u16 header-length field", len(body))
	}
	lenFieldSize := 4
	if version == FormatVersion1 {
		lenFieldSize = 2
	}
	out := make([]byte, 4+4+2+lenFieldSize+len(body)+4)
	off := 0
	off += copy(out[off:], h.Magic[:])
	binary.LittleEndian.PutUint32(out[off:], h.ArchiveID)
	off += 4
	binary.LittleEndian.PutUint16(out[off:], h.FilesystemID)
	off += 2
	if version == FormatVersion1 {
		binary.LittleEndian.PutUint16(out[off:], uint16(len(body)))
		off += 2
	} else {
		binary.LittleEndian.PutUint32(out[off:], uint32(len(body)))
		off += 4
	}
	off += copy(out[off:], body)
	sum := checksum.Checksum(body)
	binary.LittleEndian.PutUint32(out[off:], sum)
	return out, nil
}

// DecodeHeaderFields parses the fixed-width fields preceding header-bytes,
// given the already-consumed magic and the adopted format version. It
// returns the archive id, fsid, and the declared header-length so the
// caller (the reader engine, via the lookahead cache) can pull exactly
// that many more bytes plus the trailing checksum.
func DecodeHeaderFields(b []byte, version FormatVersion) (archiveID uint32, fsid uint16, headerLen uint32, consumed int, err error) {
	need := 4 + 2
	if version == FormatVersion1 {
		need += 2
	} else {
		need += 4
	}
	if len(b) < need {
		return 0, 0, 0, 0, fmt.Errorf("frame: need %d bytes for header fields, got %d", need, len(b))
	}
	archiveID = binary.LittleEndian.Uint32(b)
	fsid = binary.LittleEndian.Uint16(b[4:])
	if version == FormatVersion1 {
		headerLen = uint32(binary.LittleEndian.Uint16(b[6:]))
		consumed = 8
	} else {
		headerLen = binary.LittleEndian.Uint32(b[6:])
		consumed = 10
	}
	return
}

// VerifyAndDecodeBody validates the trailing Fletcher-32 checksum over
// body and, if it matches, decodes the dictionary. On mismatch it returns
// ErrChecksum without attempting to decode (spec.md invariant 1).
func VerifyAndDecodeBody(body []byte, wantSum uint32) (*dico.Dico, error) {
	got := checksum.Checksum(body)
	if got != wantSum {
		return nil, ErrChecksum
	}
	return dico.Decode(body)
}

// ErrChecksum is returned when a header or payload checksum does not match
// its declared value. Callers map this to archerr.Minor.
var ErrChecksum = fmt.Errorf("frame: checksum mismatch")

// DecodeHeader decodes one complete, self-contained header record out of
// b, starting at b[0] (which must already be a validated magic), and
// returns it along with the number of bytes consumed. This is a
// convenience entry point for tests and for callers (such as remote
// store replay tools) that already have the whole record buffered; the
// reader engine itself goes through the lookahead cache one field at a
// time instead, since on streaming transports the header-length isn't
// known until after the fixed fields are read.
func DecodeHeader(b []byte, version FormatVersion) (Header, int, error) {
	m, ok := IsValidMagic(b[:min(len(b), 4)])
	if !ok {
		return Header{}, 0, fmt.Errorf("frame: not a valid magic at start of buffer")
	}
	off := 4
	archiveID, fsid, headerLen, consumed, err := DecodeHeaderFields(b[off:], version)
	if err != nil {
		return Header{}, 0, err
	}
	off += consumed
	if off+int(headerLen)+4 > len(b) {
		return Header{}, 0, fmt.Errorf("frame: truncated record, need %d bytes, have %d", off+int(headerLen)+4, len(b))
	}
	body := b[off : off+int(headerLen)]
	off += int(headerLen)
	wantSum := binary.LittleEndian.Uint32(b[off:])
	off += 4
	d, err := VerifyAndDecodeBody(body, wantSum)
	if err != nil {
		return Header{}, 0, err
	}
	return Header{Magic: m, ArchiveID: archiveID, FilesystemID: fsid, Dico: d}, off, nil
}

// EncodeBlock serializes a full block record: a data-block header record
// (with info's attributes populated into dico), followed by the raw
// archived payload bytes verbatim (spec.md §4.3 "Block record layout").
// The caller is responsible for having set info.ArchivedChecksum to
// checksum.Checksum(payload) and info.ArchivedSize to len(payload) before
// calling, since those may cover compressed/encrypted bytes the payload
// collaborators produced upstream of this package.
func EncodeBlock(archiveID uint32, fsid uint16, info BlockInfo, payload []byte, version FormatVersion) ([]byte, error) {
	hdr, err := EncodeBlockHeader(archiveID, fsid, info, version)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(hdr)+len(payload))
	copy(out, hdr)
	copy(out[len(hdr):], payload)
	return out, nil
}

// DecodeBlock decodes one complete, self-contained block record out of b,
// verifying the payload's Fletcher-32 checksum against ARCSUM. See
// DecodeHeader's doc comment for why this exists alongside the reader
// engine's streaming path.
func DecodeBlock(b []byte, version FormatVersion) (Block, int, bool, error) {
	h, consumed, err := DecodeHeader(b, version)
	if err != nil {
		return Block{}, 0, false, err
	}
	if h.Magic != MagicDataBlock {
		return Block{}, 0, false, fmt.Errorf("frame: expected data-block magic, got %v", h.Magic)
	}
	info, err := BlockInfoFromDico(h.Dico)
	if err != nil {
		return Block{}, 0, false, err
	}
	if consumed+int(info.ArchivedSize) > len(b) {
		return Block{}, 0, false, fmt.Errorf("frame: truncated block payload, need %d bytes, have %d", consumed+int(info.ArchivedSize)-consumed, len(b)-consumed)
	}
	payload := b[consumed : consumed+int(info.ArchivedSize)]
	consumed += int(info.ArchivedSize)
	sumok := checksum.Checksum(payload) == info.ArchivedChecksum
	return Block{Header: h, Payload: payload}, consumed, sumok, nil
}

// Block is a decoded block record: a header record plus payload (spec.md
// §3 "Block record", §4.3 "Block record layout"). The payload's checksum
// is carried inside the header dictionary (KeyBlockArchivedSum), not
// appended separately.
type Block struct {
	Header  Header
	Payload []byte
}

// EncodeBlockHeader builds the BlockInfo attributes (offset, sizes,
// algorithm tags, checksum) into dico and returns the encoded header
// record for a block. The caller writes EncodeBlockHeader's result
// followed by the raw payload bytes verbatim (spec.md §4.3 "Encode").
func EncodeBlockHeader(archiveID uint32, fsid uint16, info BlockInfo, version FormatVersion) ([]byte, error) {
	d := dico.New()
	if err := info.populate(d); err != nil {
		return nil, err
	}
	return EncodeHeader(Header{Magic: MagicDataBlock, ArchiveID: archiveID, FilesystemID: fsid, Dico: d}, version)
}

// BlockInfo names a block's payload location/size/algorithm metadata, as
// described in spec.md §4.5 "write_block(blockinfo)".
type BlockInfo struct {
	Offset           uint64
	Size             uint64 // logical (pre-compression/encryption) size
	CompAlgo         uint16
	CryptAlgo        uint16
	ArchivedSize     uint64 // ARSIZE: bytes actually written to the archive
	ArchivedChecksum uint32 // ARCSUM: Fletcher-32 over the ARSIZE archived bytes
}

func (bi BlockInfo) populate(d *dico.Dico) error {
	if err := d.AddU64(SectionBlock, KeyBlockOffset, bi.Offset); err != nil {
		return err
	}
	if err := d.AddU64(SectionBlock, KeyBlockSize, bi.Size); err != nil {
		return err
	}
	if err := d.AddU16(SectionBlock, KeyBlockCompAlgo, bi.CompAlgo); err != nil {
		return err
	}
	if err := d.AddU16(SectionBlock, KeyBlockCryptAlgo, bi.CryptAlgo); err != nil {
		return err
	}
	if err := d.AddU64(SectionBlock, KeyBlockArchivedSize, bi.ArchivedSize); err != nil {
		return err
	}
	return d.AddU32(SectionBlock, KeyBlockArchivedSum, bi.ArchivedChecksum)
}

// requiredBlockKeys are the block-header attributes read_block cannot do
// without (spec.md §4.6): offset, logical size, ARSIZE, ARCSUM. Comp/crypt
// algorithm tags default to "none" when absent.
var requiredBlockKeys = []uint16{KeyBlockOffset, KeyBlockSize, KeyBlockArchivedSize, KeyBlockArchivedSum}

// BlockInfoFromDico extracts a BlockInfo from a decoded block-header
// dictionary (spec.md §4.6 "read_block"). It tracks which of the required
// keys were found in a bitset so a single pass can report every missing
// key at once, rather than failing fast on the first.
func BlockInfoFromDico(d *dico.Dico) (BlockInfo, error) {
	var bi BlockInfo
	found := bitset.New(uint(len(requiredBlockKeys)))
	var ok bool
	if bi.Offset, ok = d.GetU64(SectionBlock, KeyBlockOffset); ok {
		found.Set(0)
	}
	if bi.Size, ok = d.GetU64(SectionBlock, KeyBlockSize); ok {
		found.Set(1)
	}
	bi.CompAlgo, _ = d.GetU16(SectionBlock, KeyBlockCompAlgo)
	bi.CryptAlgo, _ = d.GetU16(SectionBlock, KeyBlockCryptAlgo)
	if bi.ArchivedSize, ok = d.GetU64(SectionBlock, KeyBlockArchivedSize); ok {
		found.Set(2)
	}
	if bi.ArchivedChecksum, ok = d.GetU32(SectionBlock, KeyBlockArchivedSum); ok {
		found.Set(3)
	}
	if found.Count() != uint(len(requiredBlockKeys)) {
		var missing []uint16
		for i, key := range requiredBlockKeys {
			if !found.Test(uint(i)) {
				missing = append(missing, key)
			}
		}
		return bi, fmt.Errorf("frame: block header missing required key(s) %v", missing)
	}
	return bi, nil
}
