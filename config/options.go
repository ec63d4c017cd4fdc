// Package config carries the volume I/O core's ambient configuration as an
// explicit value, rather than the global g_options singleton the original C
// source consults at operation time (spec §9 "Global state" redesign note).
package config

// Options holds the configuration consumed by the writer and reader
// constructors.
type Options struct {
	// DataBlockSize is the lookahead cache's growth quantum in bytes.
	DataBlockSize int
	// SplitSize caps the logical byte size of each volume; 0 means
	// unlimited (single-volume archive).
	SplitSize int64
	// Overwrite, if false, makes volume creation fail when the
	// destination path already exists and is a regular file.
	Overwrite bool
}

// Default values mirror the historical fsarchiver defaults: a conservative
// cache growth quantum and no split by default.
const (
	DefaultDataBlockSize = 256 << 10
	DefaultSplitSize     = int64(0)
)

// Defaults returns an Options value with the package defaults.
func Defaults() Options {
	return Options{
		DataBlockSize: DefaultDataBlockSize,
		SplitSize:     DefaultSplitSize,
		Overwrite:     false,
	}
}

// WithDefaults fills any zero field of o with the package default,
// preserving explicit overwrite=true/false (which has no "unset" zero
// value distinct from false, so callers who want overwrite=true must set it
// themselves).
func (o Options) WithDefaults() Options {
	if o.DataBlockSize <= 0 {
		o.DataBlockSize = DefaultDataBlockSize
	}
	return o
}
