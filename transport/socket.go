package transport

import (
	"net"

	"github.com/fsarc/volio/archerr"
)

// socketTransport is the Unix-domain-socket variant (spec.md §4.1
// "Socket: connect(AF_UNIX), stream semantics"). net.Dial uses
// socket(AF_UNIX)+connect under the hood, so this stays faithful to the OS
// facility the spec names while being the idiomatic Go entry point for it.
// Both read and write mode connect to the existing socket at path.
type socketTransport struct {
	conn net.Conn
}

func openSocket(path string, mode Mode) (Transport, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "transport: dial unix socket", err)
	}
	return &socketTransport{conn: conn}, nil
}

func (t *socketTransport) Read(p []byte) (int, error) {
	n, err := t.conn.Read(p)
	if n < 0 {
		return 0, archerr.E(archerr.Fatal, "transport: socket read returned negative count")
	}
	return n, err
}

func (t *socketTransport) Write(p []byte) (int, error) {
	n, err := t.conn.Write(p)
	if err != nil {
		return n, archerr.E(archerr.Fatal, "transport: socket write failed", err)
	}
	return n, nil
}

func (t *socketTransport) Skip(n int64) error {
	buf := make([]byte, 64*1024)
	for n > 0 {
		chunk := buf
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}
		nread, err := t.conn.Read(chunk)
		if err != nil {
			return archerr.E(archerr.Fatal, "transport: socket skip failed", err)
		}
		if nread == 0 {
			return archerr.E(archerr.Fatal, "transport: socket skip hit EOF")
		}
		n -= int64(nread)
	}
	return nil
}

func (t *socketTransport) DevBlockSize() int { return 1 }

func (t *socketTransport) Close() error {
	return archWrap(t.conn.Close())
}
