package transport

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/fsarc/volio/archerr"
)

// scsiTapeMajor is Linux's major device number for SCSI tape drives
// (st/nst), used to distinguish a tape from any other character device
// (spec.md §4.1 "Tape (S_ISCHR && SCSI tape)").
const scsiTapeMajor = 9

// FSATapeBlock is the archiver's default tape I/O block size.
const FSATapeBlock = 64 << 10

func isSCSITape(path string) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, err
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return false, nil
	}
	return unix.Major(uint64(st.Rdev)) == scsiTapeMajor, nil
}

// tapeTransport is the Tape variant. It reuses blockTransport's
// quantized-write buffering (spec.md §9 "tape skip is implemented as
// block-skip ... unverified for all tape drivers, leave as a documented
// limitation") and additionally manages the device's physical block size
// across open/close.
type tapeTransport struct {
	blockTransport
	originalBlockSize int // -1 if unchanged
}

// mtGet and mtOp mirror linux/mtio.h's mtget/mtop structs, used directly
// via raw ioctl syscalls since x/sys/unix does not wrap MTIOCGET/MTIOCTOP
// with typed helpers the way it does BLKSSZGET.
type mtGet struct {
	Type    int64
	Resid   int64
	Dsreg   int64
	Gstat   int64
	Erreg   int64
	Fileno  int32
	Blkno   int32
}

type mtOp struct {
	Op    int16
	Pad   int16
	Count int32
}

const (
	mtiocget = 0x80306d02
	mtioctop = 0x40086d01
	mtsetblk = 20

	mtSTBlksizeShift = 0
	mtSTBlksizeMask  = 0xffffff
)

func ioctlMtGet(f *os.File) (mtGet, error) {
	var st mtGet
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(mtiocget), uintptr(unsafe.Pointer(&st)))
	if errno != 0 {
		return mtGet{}, errno
	}
	return st, nil
}

func ioctlMtSetBlk(f *os.File, size int) error {
	op := mtOp{Op: mtsetblk, Count: int32(size & mtSTBlksizeMask)}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(mtioctop), uintptr(unsafe.Pointer(&op)))
	if errno != 0 {
		return errno
	}
	return nil
}

func openTape(path string, mode Mode, opts OpenOptions) (Transport, error) {
	flag := os.O_RDONLY
	if mode == ModeWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, archerr.E(archerr.Fatal, "transport: open tape device", err)
	}

	wantSize := opts.DevBlockSize
	if wantSize <= 0 {
		wantSize = FSATapeBlock
	}

	current, err := getTapeBlockSize(f)
	if err != nil {
		_ = f.Close()
		return nil, archerr.E(archerr.Fatal, "transport: cannot get the tape status", err)
	}

	t := &tapeTransport{
		blockTransport:    blockTransport{f: f, devBlockSize: wantSize},
		originalBlockSize: -1,
	}
	if current != wantSize {
		if err := setTapeBlockSize(f, wantSize); err != nil {
			_ = f.Close()
			return nil, archerr.E(archerr.Fatal, "transport: cannot set the tape block size", err)
		}
		t.originalBlockSize = current
	}
	return t, nil
}

// getTapeBlockSize queries the tape's current block size via MTIOCGET,
// mirroring archwriter_create's status.mt_gstat>>MT_ST_BLKSIZE_SHIFT
// extraction.
func getTapeBlockSize(f *os.File) (int, error) {
	st, err := ioctlMtGet(f)
	if err != nil {
		return 0, err
	}
	return int((st.Gstat >> mtSTBlksizeShift) & mtSTBlksizeMask), nil
}

func setTapeBlockSize(f *os.File, size int) error {
	return ioctlMtSetBlk(f, size)
}

// Close restores the tape's original block size before delegating to the
// embedded blockTransport's padded flush (archwriter_close's restore
// logic).
func (t *tapeTransport) Close() error {
	err := t.blockTransport.Close()
	if t.originalBlockSize != -1 {
		if serr := setTapeBlockSize(t.blockTransport.f, t.originalBlockSize); serr != nil && err == nil {
			err = archerr.E(archerr.Fatal, "transport: cannot restore original tape block size", serr)
		}
	}
	return err
}
