package comp

import (
	"bytes"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 64)
	for _, algo := range []Algo{None, Flate, Zstd} {
		compressed, err := Compress(algo, 0, data)
		if err != nil {
			t.Fatalf("algo %d: compress: %v", algo, err)
		}
		if algo != None && len(compressed) >= len(data) {
			t.Errorf("algo %d: expected compression to shrink repetitive data", algo)
		}
		got, err := Decompress(algo, compressed, len(data))
		if err != nil {
			t.Fatalf("algo %d: decompress: %v", algo, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("algo %d: round trip mismatch", algo)
		}
	}
}

func TestCompressUnknownAlgo(t *testing.T) {
	if _, err := Compress(99, 0, []byte("x")); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	if _, err := Decompress(99, []byte("x"), 0); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}
