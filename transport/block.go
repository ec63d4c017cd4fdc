package transport

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/fsarc/volio/archerr"
)

// blockTransport is the Block variant: reads/writes are quantized to
// devblocksize (spec.md invariant 8), writes are accumulated in an
// internal cache and flushed at the largest devblocksize multiple it
// contains, the way archwriter_write_blocks/archwriter_precache do.
type blockTransport struct {
	f            *os.File
	devBlockSize int
	wbuf         []byte // pending bytes not yet flushed
}

func openBlock(path string, mode Mode, opts OpenOptions) (Transport, error) {
	flag := os.O_RDONLY
	if mode == ModeWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "transport: open block device", err)
	}
	size := opts.DevBlockSize
	if size <= 0 {
		size, err = queryBlockDeviceBlockSize(f)
		if err != nil {
			_ = f.Close()
			return nil, archerr.E(archerr.Fatal, "transport: query block device block size", err)
		}
	}
	return &blockTransport{f: f, devBlockSize: size}, nil
}

func queryBlockDeviceBlockSize(f *os.File) (int, error) {
	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		size = 512
	}
	return size, nil
}

// Read pulls devblocksize-quantized chunks directly from the device; the
// lookahead cache above this layer absorbs any granularity mismatch with
// what the caller actually asked for.
func (t *blockTransport) Read(p []byte) (int, error) {
	n, err := t.f.Read(p)
	if n < 0 {
		return 0, archerr.E(archerr.Fatal, "transport: block read returned negative count")
	}
	return n, err
}

// Write buffers p and flushes whole devblocksize multiples, retaining any
// remainder -- archwriter_write_blocks/archwriter_precache's behavior.
func (t *blockTransport) Write(p []byte) (int, error) {
	t.wbuf = append(t.wbuf, p...)
	flushable := (len(t.wbuf) / t.devBlockSize) * t.devBlockSize
	if flushable > 0 {
		if _, err := t.f.Write(t.wbuf[:flushable]); err != nil {
			return 0, archerr.E(archerr.Fatal, "transport: block write failed", err)
		}
		remaining := len(t.wbuf) - flushable
		copy(t.wbuf, t.wbuf[flushable:])
		t.wbuf = t.wbuf[:remaining]
	}
	return len(p), nil
}

// Skip discards n bytes, quantized to devblocksize the same way reads are
// (spec.md §4.1 "skip: quantized read-skip"; §9 documents tape skip as
// identical to block skip, an open question left unresolved upstream).
func (t *blockTransport) Skip(n int64) error {
	quantized := (n / int64(t.devBlockSize)) * int64(t.devBlockSize)
	if n%int64(t.devBlockSize) != 0 {
		quantized += int64(t.devBlockSize)
	}
	buf := make([]byte, t.devBlockSize)
	for quantized > 0 {
		chunk := buf
		if int64(len(chunk)) > quantized {
			chunk = chunk[:quantized]
		}
		nread, err := t.f.Read(chunk)
		if nread < 0 {
			return archerr.E(archerr.Fatal, "transport: block skip read returned negative count")
		}
		quantized -= int64(nread)
		if err != nil {
			if nread == 0 {
				return archerr.E(archerr.Fatal, "transport: block skip hit EOF", err)
			}
			break
		}
	}
	return nil
}

func (t *blockTransport) DevBlockSize() int { return t.devBlockSize }

// Close zero-pads any remainder to one device block and flushes it, per
// spec.md invariant 8 "the final write at close is zero-padded to that
// quantum" (archwriter_close's "pending" handling).
func (t *blockTransport) Close() error {
	if len(t.wbuf) > 0 {
		padded := make([]byte, t.devBlockSize)
		copy(padded, t.wbuf)
		if _, err := t.f.Write(padded); err != nil {
			_ = t.f.Close()
			return archerr.E(archerr.Fatal, "transport: final padded block write failed", err)
		}
		t.wbuf = nil
	}
	if err := t.f.Sync(); err != nil {
		_ = t.f.Close()
		return archerr.E(archerr.Fatal, "transport: fsync failed", err)
	}
	return archWrap(t.f.Close())
}

func archWrap(err error) error {
	if err == nil {
		return nil
	}
	return archerr.E(archerr.Fatal, "transport: close failed", err)
}
