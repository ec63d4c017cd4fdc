package transport

import (
	"os"

	"github.com/fsarc/volio/archerr"
)

// pipeInTransport reads archive data piped into the process on stdin
// (path "-" in read mode), byte-granular and non-seekable like any other
// stream transport.
type pipeInTransport struct {
	f *os.File
}

func newPipeIn(f *os.File) Transport {
	return &pipeInTransport{f: f}
}

func (t *pipeInTransport) Read(p []byte) (int, error) {
	n, err := t.f.Read(p)
	if n < 0 {
		return 0, archerr.E(archerr.Fatal, "transport: pipe-in read returned negative count")
	}
	return n, err
}

func (t *pipeInTransport) Write([]byte) (int, error) {
	return 0, archerr.E(archerr.Fatal, "transport: pipe-in transport is read-only")
}

func (t *pipeInTransport) Skip(n int64) error {
	buf := make([]byte, 64*1024)
	for n > 0 {
		chunk := buf
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}
		nread, err := t.f.Read(chunk)
		if nread < 0 {
			return archerr.E(archerr.Fatal, "transport: pipe-in skip returned negative count")
		}
		n -= int64(nread)
		if err != nil {
			if nread == 0 {
				return archerr.E(archerr.Fatal, "transport: pipe-in skip hit EOF", err)
			}
			break
		}
	}
	return nil
}

func (t *pipeInTransport) DevBlockSize() int { return 1 }

// Close deliberately does not close os.Stdin; the process owns its
// lifetime, not the transport.
func (t *pipeInTransport) Close() error { return nil }

// pipeOutTransport streams archive data to stdout (path "-" in write
// mode), flushing every write immediately -- there is nothing to buffer
// since a pipe has no devblocksize quantum.
type pipeOutTransport struct {
	f *os.File
}

func newPipeOut(f *os.File) Transport {
	return &pipeOutTransport{f: f}
}

func (t *pipeOutTransport) Read([]byte) (int, error) {
	return 0, archerr.E(archerr.Fatal, "transport: pipe-out transport is write-only")
}

func (t *pipeOutTransport) Write(p []byte) (int, error) {
	n, err := t.f.Write(p)
	if err != nil {
		return n, archerr.E(archerr.Fatal, "transport: pipe-out write failed", err)
	}
	return n, nil
}

func (t *pipeOutTransport) Skip(int64) error {
	return archerr.E(archerr.Fatal, "transport: cannot skip on a write-only pipe")
}

func (t *pipeOutTransport) DevBlockSize() int { return 1 }

func (t *pipeOutTransport) Close() error { return nil }
