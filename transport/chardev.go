package transport

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fsarc/volio/archerr"
)

// charDevTransport is the character-device variant (anything S_ISCHR that
// isn't a SCSI tape): byte-granular, non-seekable, every write flushed
// immediately, reads gated by select() so a read on an idle device returns
// rather than blocking forever (spec.md §4.1 "Char-device reader uses
// select() with a timeout, not a blocking read").
type charDevTransport struct {
	f *os.File
}

func openCharDev(path string, mode Mode) (Transport, error) {
	flag := os.O_RDONLY | unix.O_NONBLOCK
	if mode == ModeWrite {
		flag = os.O_RDWR | unix.O_NONBLOCK
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "transport: open character device", err)
	}
	return &charDevTransport{f: f}, nil
}

// selectTimeout bounds each readiness poll; the loop retries until data
// arrives or the underlying read reports EOF.
const selectTimeout = 200 * time.Millisecond

func (t *charDevTransport) Read(p []byte) (int, error) {
	for {
		ready, err := waitReadable(int(t.f.Fd()), selectTimeout)
		if err != nil {
			return 0, archerr.E(archerr.Fatal, "transport: select on character device failed", err)
		}
		if !ready {
			continue
		}
		n, err := t.f.Read(p)
		if n < 0 {
			return 0, archerr.E(archerr.Fatal, "transport: char-device read returned negative count")
		}
		return n, err
	}
}

// Write flushes each call directly, matching archwriter_write_char's
// unbuffered behavior for non-block devices.
func (t *charDevTransport) Write(p []byte) (int, error) {
	n, err := t.f.Write(p)
	if err != nil {
		return n, archerr.E(archerr.Fatal, "transport: char-device write failed", err)
	}
	return n, nil
}

// Skip reads and discards n bytes; character devices cannot seek.
func (t *charDevTransport) Skip(n int64) error {
	buf := make([]byte, 64*1024)
	for n > 0 {
		chunk := buf
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}
		nread, err := t.Read(chunk)
		if err != nil {
			return archerr.E(archerr.Fatal, "transport: char-device skip failed", err)
		}
		if nread == 0 {
			return archerr.E(archerr.Fatal, "transport: char-device skip hit EOF")
		}
		n -= int64(nread)
	}
	return nil
}

func (t *charDevTransport) DevBlockSize() int { return 1 }

func (t *charDevTransport) Close() error {
	return archWrap(t.f.Close())
}

// waitReadable polls fd for readability via select(), returning false on a
// plain timeout (spec.md §4.1's rationale for select over blocking reads on
// char devices and fifos).
func waitReadable(fd int, timeout time.Duration) (bool, error) {
	var fds unix.FdSet
	fds.Set(fd)
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(fd+1, &fds, nil, nil, &tv)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}
