package transport

import (
	"errors"
	"io"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/fsarc/volio/archerr"
)

// regularTransport is the Regular variant: a seekable, byte-granular file.
type regularTransport struct {
	f *os.File
}

func openRegular(path string, mode Mode, _ OpenOptions) (Transport, error) {
	flag := os.O_RDONLY
	if mode == ModeWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "transport: open regular file", err)
	}
	return &regularTransport{f: f}, nil
}

// openRegularForCreate is reached when the destination doesn't exist yet;
// the volume is created with O_CREAT|O_TRUNC, matching archwriter_create's
// "there is no file, create it" branch.
func openRegularForCreate(path string, _ OpenOptions) (Transport, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "transport: create regular file", err)
	}
	return &regularTransport{f: f}, nil
}

func (t *regularTransport) Read(p []byte) (int, error) {
	n, err := t.f.Read(p)
	if n < 0 {
		return 0, archerr.E(archerr.Fatal, "transport: regular read returned negative count")
	}
	return n, err
}

func (t *regularTransport) Write(p []byte) (int, error) {
	n, err := t.f.Write(p)
	if err != nil {
		if errors.Is(err, syscall.ENOSPC) || n < len(p) {
			// Out-of-space is the FAT-2GB/out-of-space symptom described in
			// spec.md §4.1 "Regular-writer error": probe free space instead
			// of surfacing the bare write error.
			return n, checkDiskSpace(t.f)
		}
		return n, archerr.E(archerr.Fatal, "transport: regular write failed", err)
	}
	return n, nil
}

func (t *regularTransport) Skip(n int64) error {
	if n == 0 {
		return nil
	}
	_, err := t.f.Seek(n, io.SeekCurrent)
	if err != nil {
		return archerr.E(archerr.Fatal, "transport: seek failed during skip", err)
	}
	return nil
}

func (t *regularTransport) DevBlockSize() int { return 1 }

func (t *regularTransport) Close() error {
	if err := t.f.Sync(); err != nil {
		_ = t.f.Close()
		return archerr.E(archerr.Fatal, "transport: fsync failed", err)
	}
	if err := t.f.Close(); err != nil {
		return archerr.E(archerr.Fatal, "transport: close failed", err)
	}
	return nil
}

// freeBytes reports free bytes on the filesystem backing f, via statvfs
// (spec.md §4.1 "query free space on the containing filesystem").
func freeBytes(f *os.File) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Fstatfs(int(f.Fd()), &st); err != nil {
		return 0, err
	}
	return st.Bfree * uint64(st.Bsize), nil
}
