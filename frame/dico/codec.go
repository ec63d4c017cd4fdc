package dico

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes the dictionary per spec.md §4.3:
//
//	count: u16 LE
//	repeated count times:
//	   type:    u8
//	   section: u8
//	   key:     u16 LE
//	   size:    u16 LE
//	   value:   size bytes
//
// An error is returned if the dictionary has grown to more than 65535
// attributes (count would overflow its u16 field) or if any value exceeds
// MaxValueSize -- the latter can only happen if a caller bypassed
// AddGeneric's own check and built an Attr by hand.
func (d *Dico) Encode() ([]byte, error) {
	if len(d.attrs) > 0xffff {
		return nil, fmt.Errorf("dico: %d attributes exceeds u16 count field", len(d.attrs))
	}
	size := 2
	for _, a := range d.attrs {
		if len(a.Value) > MaxValueSize {
			return nil, fmt.Errorf("dico: value for (section=%d,key=%d) is %d bytes, exceeds max %d", a.Section, a.Key, len(a.Value), MaxValueSize)
		}
		size += 1 + 1 + 2 + 2 + len(a.Value)
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint16(buf, uint16(len(d.attrs)))
	off := 2
	for _, a := range d.attrs {
		buf[off] = a.Type
		buf[off+1] = a.Section
		binary.LittleEndian.PutUint16(buf[off+2:], a.Key)
		binary.LittleEndian.PutUint16(buf[off+4:], uint16(len(a.Value)))
		off += 6
		off += copy(buf[off:], a.Value)
	}
	return buf, nil
}

// Decode parses header-bytes produced by Encode back into a dictionary.
func Decode(b []byte) (*Dico, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("dico: truncated count field (%d bytes)", len(b))
	}
	count := binary.LittleEndian.Uint16(b)
	d := &Dico{attrs: make([]Attr, 0, count)}
	off := 2
	for i := 0; i < int(count); i++ {
		if off+6 > len(b) {
			return nil, fmt.Errorf("dico: truncated attribute header at index %d", i)
		}
		typ := b[off]
		section := b[off+1]
		key := binary.LittleEndian.Uint16(b[off+2:])
		size := binary.LittleEndian.Uint16(b[off+4:])
		off += 6
		if off+int(size) > len(b) {
			return nil, fmt.Errorf("dico: truncated value at index %d (need %d bytes)", i, size)
		}
		value := make([]byte, size)
		copy(value, b[off:off+int(size)])
		off += int(size)
		d.attrs = append(d.attrs, Attr{Section: section, Key: key, Type: typ, Value: value})
	}
	if off != len(b) {
		return nil, fmt.Errorf("dico: %d trailing bytes after last attribute", len(b)-off)
	}
	return d, nil
}
