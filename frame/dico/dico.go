// Package dico implements the dictionary sub-format: an ordered collection
// of typed, length-prefixed attributes keyed by (section, key), as
// described in spec.md §3 "Dictionary". It is the only structured
// sub-format the volume I/O core interprets; attribute values themselves
// are opaque bytes to everything above this package.
package dico

import (
	"encoding/binary"
	"fmt"
)

// Type tags for attribute values. The core does not interpret these beyond
// round-tripping them; they let callers store ints/strings/raw bytes
// without each caller reinventing a marshaling convention, mirroring the
// teacher's recordio header encoder (recordio/header.go).
const (
	TypeRaw    byte = 0
	TypeU16    byte = 1
	TypeU32    byte = 2
	TypeU64    byte = 3
	TypeString byte = 4
	TypeBool   byte = 5
)

// MaxValueSize is the largest value a single attribute may carry (spec.md §3
// "Sizes mean: no single attribute value exceeds 65535 bytes").
const MaxValueSize = 65535

// Attr is one (section, key) -> typed value entry.
type Attr struct {
	Section byte
	Key     uint16
	Type    byte
	Value   []byte
}

// Dico is an ordered collection of attributes. The zero value is an empty,
// ready-to-use dictionary (dico_alloc in the collaborator interface is
// simply new(Dico) / var d Dico).
type Dico struct {
	attrs []Attr
}

// New returns an empty dictionary, equivalent to the collaborator
// interface's dico_alloc.
func New() *Dico { return &Dico{} }

// Destroy releases the dictionary's storage. Provided for symmetry with the
// collaborator interface's dico_destroy; in Go this just drops the
// reference so the GC can reclaim it.
func (d *Dico) Destroy() { d.attrs = nil }

// Len returns the number of attributes in the dictionary.
func (d *Dico) Len() int { return len(d.attrs) }

// Attrs returns the dictionary's attributes in insertion order. The
// returned slice aliases the dictionary's storage and must not be mutated.
func (d *Dico) Attrs() []Attr { return d.attrs }

// AddGeneric adds a raw attribute, equivalent to the collaborator
// interface's dico_add_generic(section, key, bytes, size, type). It
// overwrites any existing attribute with the same (section, key), matching
// the encode/decode key-value-store semantics used elsewhere in the format
// (cf. recordio header keys, which are also overwrite-on-duplicate).
func (d *Dico) AddGeneric(section byte, key uint16, value []byte, typ byte) error {
	if len(value) > MaxValueSize {
		return fmt.Errorf("dico: value for (section=%d,key=%d) is %d bytes, exceeds max %d", section, key, len(value), MaxValueSize)
	}
	for i := range d.attrs {
		if d.attrs[i].Section == section && d.attrs[i].Key == key {
			d.attrs[i].Type = typ
			d.attrs[i].Value = value
			return nil
		}
	}
	d.attrs = append(d.attrs, Attr{Section: section, Key: key, Type: typ, Value: value})
	return nil
}

// AddU16 adds a u16 attribute.
func (d *Dico) AddU16(section byte, key uint16, v uint16) error {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return d.AddGeneric(section, key, b, TypeU16)
}

// AddU32 adds a u32 attribute.
func (d *Dico) AddU32(section byte, key uint16, v uint32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return d.AddGeneric(section, key, b, TypeU32)
}

// AddU64 adds a u64 attribute.
func (d *Dico) AddU64(section byte, key uint16, v uint64) error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return d.AddGeneric(section, key, b, TypeU64)
}

// AddString adds a string attribute.
func (d *Dico) AddString(section byte, key uint16, v string) error {
	return d.AddGeneric(section, key, []byte(v), TypeString)
}

// AddBool adds a bool attribute.
func (d *Dico) AddBool(section byte, key uint16, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	return d.AddGeneric(section, key, []byte{b}, TypeBool)
}

func (d *Dico) find(section byte, key uint16) (Attr, bool) {
	for _, a := range d.attrs {
		if a.Section == section && a.Key == key {
			return a, true
		}
	}
	return Attr{}, false
}

// GetData returns the raw value bytes for (section, key).
func (d *Dico) GetData(section byte, key uint16) ([]byte, bool) {
	a, ok := d.find(section, key)
	if !ok {
		return nil, false
	}
	return a.Value, true
}

// GetU16 returns the u16 value for (section, key).
func (d *Dico) GetU16(section byte, key uint16) (uint16, bool) {
	v, ok := d.GetData(section, key)
	if !ok || len(v) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(v), true
}

// GetU32 returns the u32 value for (section, key).
func (d *Dico) GetU32(section byte, key uint16) (uint32, bool) {
	v, ok := d.GetData(section, key)
	if !ok || len(v) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(v), true
}

// GetU64 returns the u64 value for (section, key).
func (d *Dico) GetU64(section byte, key uint16) (uint64, bool) {
	v, ok := d.GetData(section, key)
	if !ok || len(v) < 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(v), true
}

// GetString returns the string value for (section, key).
func (d *Dico) GetString(section byte, key uint16) (string, bool) {
	v, ok := d.GetData(section, key)
	if !ok {
		return "", false
	}
	return string(v), true
}

// GetBool returns the bool value for (section, key).
func (d *Dico) GetBool(section byte, key uint16) (bool, bool) {
	v, ok := d.GetData(section, key)
	if !ok || len(v) < 1 {
		return false, false
	}
	return v[0] != 0, true
}
