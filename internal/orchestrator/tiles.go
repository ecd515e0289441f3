package orchestrator

import (
	"errors"
	"fmt"
	"io"

	"filmstrip/internal/trace"
)

// TileContentType is the MIME type of a single tile.
const TileContentType = "image/jpeg"

// ErrInvalidTile is returned for a segment that cannot address any bytes.
var ErrInvalidTile = errors.New("invalid tile segment")

// TileRange returns the Range header value that fetches seg from the artifact,
// or an empty string when seg addresses no bytes.
func TileRange(seg trace.Segment) string {
	if seg.ByteOffset < 0 || seg.SizeInBytes <= 0 {
		return ""
	}
	return fmt.Sprintf("bytes=%d-%d", seg.ByteOffset, seg.ByteOffset+seg.SizeInBytes-1)
}

// ReadTile reads exactly the bytes of seg from r.
func ReadTile(r io.ReaderAt, seg trace.Segment) ([]byte, error) {
	if seg.ByteOffset < 0 || seg.SizeInBytes <= 0 {
		return nil, fmt.Errorf("%w: offset %d size %d", ErrInvalidTile, seg.ByteOffset, seg.SizeInBytes)
	}

	buf := make([]byte, seg.SizeInBytes)
	n, err := r.ReadAt(buf, seg.ByteOffset)
	if n == len(buf) {
		// ReadAt may report io.EOF alongside a full read at the end of input.
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read tile %s: %w", TileRange(seg), err)
}
