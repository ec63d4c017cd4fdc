package transport

import (
	"os"

	"github.com/fsarc/volio/archerr"
)

// fifoTransport is the named-pipe variant: byte-granular, non-seekable,
// same select-gated read discipline as character devices (spec.md §4.1
// "Fifo: open(), select()-gated reads, stream semantics").
type fifoTransport struct {
	f *os.File
}

func openFifo(path string, mode Mode) (Transport, error) {
	flag := os.O_RDONLY
	if mode == ModeWrite {
		flag = os.O_WRONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "transport: open fifo", err)
	}
	return &fifoTransport{f: f}, nil
}

func (t *fifoTransport) Read(p []byte) (int, error) {
	for {
		ready, err := waitReadable(int(t.f.Fd()), selectTimeout)
		if err != nil {
			return 0, archerr.E(archerr.Fatal, "transport: select on fifo failed", err)
		}
		if !ready {
			continue
		}
		n, err := t.f.Read(p)
		if n < 0 {
			return 0, archerr.E(archerr.Fatal, "transport: fifo read returned negative count")
		}
		return n, err
	}
}

func (t *fifoTransport) Write(p []byte) (int, error) {
	n, err := t.f.Write(p)
	if err != nil {
		return n, archerr.E(archerr.Fatal, "transport: fifo write failed", err)
	}
	return n, nil
}

func (t *fifoTransport) Skip(n int64) error {
	buf := make([]byte, 64*1024)
	for n > 0 {
		chunk := buf
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}
		nread, err := t.Read(chunk)
		if err != nil {
			return archerr.E(archerr.Fatal, "transport: fifo skip failed", err)
		}
		if nread == 0 {
			return archerr.E(archerr.Fatal, "transport: fifo skip hit EOF")
		}
		n -= int64(nread)
	}
	return nil
}

func (t *fifoTransport) DevBlockSize() int { return 1 }

func (t *fifoTransport) Close() error {
	return archWrap(t.f.Close())
}
