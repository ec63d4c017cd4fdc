// Package comp implements the optional compression collaborator referenced
// by a block header's compression-algorithm tag (frame.KeyBlockCompAlgo):
// payload bytes are opaque to the volume I/O core (spec.md §1 "payload
// opacity is assumed"), so compression runs upstream of frame.EncodeBlock
// and downstream of frame.DecodeBlock, keyed by a small closed algorithm
// tag rather than a registry.
//
// Grounded on the teacher's recordio/recordioutil compress.go
// (CompressTransform/DecompressTransform shape over klauspost/compress),
// generalized from a single hard-coded Flate transform to a per-record
// algorithm-tag dispatch table covering both Flate and Zstd.
package comp

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// Algo identifies a compression algorithm. It is stored verbatim in a
// block header's compression-algorithm attribute.
type Algo uint16

const (
	// None passes payload bytes through unchanged.
	None Algo = 0
	Flate Algo = 1
	Zstd  Algo = 2
)

// Compress returns data compressed under algo. level is consulted only for
// Flate (flate.DefaultCompression if <= 0); Zstd always compresses at its
// library default.
func Compress(algo Algo, level int, data []byte) ([]byte, error) {
	switch algo {
	case None:
		return data, nil
	case Flate:
		if level <= 0 {
			level = flate.DefaultCompression
		}
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, level)
		if err != nil {
			return nil, fmt.Errorf("comp: new flate writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("comp: flate write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("comp: flate close: %w", err)
		}
		return buf.Bytes(), nil
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("comp: new zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("comp: unknown compression algorithm tag %d", algo)
	}
}

// Decompress reverses Compress. sizeHint, when > 0, preallocates the
// output buffer (the block header's logical size attribute is the natural
// hint here, since it names the pre-compression size).
func Decompress(algo Algo, data []byte, sizeHint int) ([]byte, error) {
	switch algo {
	case None:
		return data, nil
	case Flate:
		out := bytes.NewBuffer(make([]byte, 0, sizeHint))
		r := flate.NewReader(bytes.NewReader(data))
		if _, err := io.Copy(out, r); err != nil {
			return nil, fmt.Errorf("comp: flate decompress: %w", err)
		}
		if err := r.Close(); err != nil {
			return nil, fmt.Errorf("comp: flate close: %w", err)
		}
		return out.Bytes(), nil
	case Zstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("comp: new zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, make([]byte, 0, sizeHint))
		if err != nil {
			return nil, fmt.Errorf("comp: zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("comp: unknown compression algorithm tag %d", algo)
	}
}
