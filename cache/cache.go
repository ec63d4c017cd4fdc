// Package cache implements the reader-side lookahead cache described in
// spec.md §4.2: a contiguous byte buffer supporting read, unread
// (pushback), and forward-skip, growth-quantized to the configured
// datablocksize then rounded up to the transport's device block size.
//
// Per spec.md §9 "Mutable lookahead cache" redesign note, this is an owned
// contiguous buffer plus two integer offsets (readOff, writeOff) rather
// than three raw pointers into one buffer -- the portable re-architecture
// the spec calls for, in the spirit of morebufio's buffer-plus-window
// readers (morebufio/peekback.go) generalized with an explicit Unread.
package cache

import "fmt"

// Source is the pull side of the cache: the transport it reads ahead
// from. Skip is used only when a forward skip outgrows the cached
// suffix and the underlying transport can shortcut it (e.g. by seeking);
// streaming transports implement Skip as read-and-discard.
type Source interface {
	Read(p []byte) (int, error)
	Skip(n int64) error
}

// Cache is the lookahead buffer. The zero value is not usable; construct
// with New.
type Cache struct {
	src Source

	buf      []byte
	readOff  int
	writeOff int

	dataBlockSize int
	devBlockSize  int
}

// New creates a cache pulling from src. dataBlockSize is the growth
// quantum (config.Options.DataBlockSize); devBlockSize is the transport's
// physical block size (1 for byte-granular transports). The buffer itself
// is allocated lazily, on first demand (spec.md §3 "Cache buffer ...
// created on first demand").
func New(src Source, dataBlockSize, devBlockSize int) *Cache {
	if dataBlockSize <= 0 {
		dataBlockSize = 1
	}
	if devBlockSize <= 0 {
		devBlockSize = 1
	}
	return &Cache{src: src, dataBlockSize: dataBlockSize, devBlockSize: devBlockSize}
}

// Close releases the cache's buffer (spec.md §3 "... freed on close").
func (c *Cache) Close() {
	c.buf = nil
	c.readOff, c.writeOff = 0, 0
}

func roundUp(n, quantum int) int {
	if quantum <= 0 {
		return n
	}
	if n%quantum == 0 {
		return n
	}
	return (n/quantum + 1) * quantum
}

// grow ensures the buffer can hold at least need more bytes past
// writeOff, preserving already-buffered bytes (spec.md §4.2 "Growth
// policy"): enlarge to the smallest multiple of dataBlockSize covering the
// need, then round up to a multiple of devBlockSize.
func (c *Cache) grow(need int) {
	wantCap := c.writeOff + need
	if wantCap <= cap(c.buf) {
		c.buf = c.buf[:cap(c.buf)]
		return
	}
	newCap := roundUp(wantCap, c.dataBlockSize)
	newCap = roundUp(newCap, c.devBlockSize)
	nb := make([]byte, newCap)
	copy(nb, c.buf[:c.writeOff])
	c.buf = nb
}

// fill pulls from the source until at least n bytes are buffered past
// readOff, or the source returns an error (including io.EOF).
func (c *Cache) fill(n int) error {
	for c.writeOff-c.readOff < n {
		need := n - (c.writeOff - c.readOff)
		c.grow(need)
		nread, err := c.src.Read(c.buf[c.writeOff:cap(c.buf)])
		if nread < 0 {
			return fmt.Errorf("cache: source Read returned negative count %d", nread)
		}
		c.writeOff += nread
		if err != nil {
			return err
		}
		if nread == 0 {
			return fmt.Errorf("cache: source Read returned 0 bytes without error")
		}
	}
	return nil
}

// Read ensures writeOff-readOff >= n by pulling from the source, then
// returns the slice [readOff, readOff+n) and advances readOff. The
// returned slice aliases the cache's internal buffer and is invalidated by
// the next Read/Unread/Skip/grow.
//
// If the source runs out before n bytes are available, Read returns
// whatever was buffered (which may be fewer than n bytes) along with the
// source's error (typically io.EOF) -- the caller (scan/frame) is
// responsible for treating a short read as fatal or end-of-archive as
// appropriate.
func (c *Cache) Read(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("cache: Read called with negative n=%d", n)
	}
	err := c.fill(n)
	avail := c.writeOff - c.readOff
	if avail > n {
		avail = n
	}
	out := c.buf[c.readOff : c.readOff+avail]
	c.readOff += avail
	return out, err
}

// Unread rewinds readOff by n bytes, requiring n <= readOff (spec.md §4.2
// "unread(n): requires n <= (read_pos - base)"). After rewinding, if
// readOff > 0, the cache compacts the remaining bytes down to offset 0;
// per spec.md §9, compaction is a memory-bounding tactic, not required for
// correctness, so callers must not rely on buffer identity across Unread.
func (c *Cache) Unread(n int) error {
	if n < 0 {
		return fmt.Errorf("cache: Unread called with negative n=%d", n)
	}
	if n > c.readOff {
		return fmt.Errorf("cache: Unread(%d) exceeds %d bytes already consumed", n, c.readOff)
	}
	c.readOff -= n
	if c.readOff > 0 {
		remaining := c.writeOff - c.readOff
		copy(c.buf, c.buf[c.readOff:c.writeOff])
		c.readOff = 0
		c.writeOff = remaining
	}
	return nil
}

// Buffered returns the number of bytes currently available to Read without
// pulling from the source.
func (c *Cache) Buffered() int { return c.writeOff - c.readOff }

// Skip advances past n bytes without returning them. If n fits in the
// already-cached suffix, it's a pure offset bump; otherwise the cache is
// invalidated and the remainder is skipped directly on the source, which
// may shortcut via seek (Regular transport) or must read-and-discard in
// possibly multiple cache-sized chunks (streaming transports), per
// spec.md §4.2 "skip(n)".
func (c *Cache) Skip(n int64) error {
	if n < 0 {
		return fmt.Errorf("cache: Skip called with negative n=%d", n)
	}
	cached := int64(c.writeOff - c.readOff)
	if n <= cached {
		c.readOff += int(n)
		return nil
	}
	remaining := n - cached
	c.readOff, c.writeOff = 0, 0
	return c.src.Skip(remaining)
}
