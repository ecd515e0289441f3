// Package rangefile exposes a remote HTTP resource as a blocking random-access
// file. Reads are served from a single sliding window that is refilled with a
// byte-range GET on every miss.
package rangefile

// Cache holds at most one window of a remote file keyed by its absolute
// offset. A miss replaces the window wholesale; windows are never merged.
type Cache struct {
	offset int64
	data   []byte
	valid  bool
}

// CanServe reports whether [offset, offset+length) lies fully inside the window.
func (c *Cache) CanServe(offset, length int64) bool {
	return c.valid &&
		offset >= c.offset &&
		offset+length <= c.offset+int64(len(c.data))
}

// Serve copies up to length bytes starting at offset into dst and returns the
// number of bytes copied. The copy is clamped to the window and to dst, which
// matters right after Replace when the origin returned a short tail at EOF.
func (c *Cache) Serve(offset, length int64, dst []byte) int {
	if !c.valid || offset < c.offset {
		return 0
	}
	start := offset - c.offset
	if start >= int64(len(c.data)) {
		return 0
	}
	end := min(start+length, int64(len(c.data)))
	return copy(dst, c.data[start:end])
}

// Replace overwrites the window unconditionally.
func (c *Cache) Replace(offset int64, data []byte) {
	c.offset = offset
	c.data = data
	c.valid = true
}
