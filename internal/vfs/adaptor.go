// Package vfs adapts a remote random-access file to the stat/seek/read
// callbacks a host filesystem drives, and hosts such a file for an engine
// process over loopback HTTP.
package vfs

import (
	"context"
	"errors"
	"fmt"
)

// Whence selects the reference point of a Seek. The values match io.SeekStart,
// io.SeekCurrent and io.SeekEnd.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// BlockSize is the block size reported by Stat.
const BlockSize = 4096

// ErrInvalidArgument is returned for an unknown whence or a negative position.
var ErrInvalidArgument = errors.New("invalid argument")

// Attr is the subset of file attributes the host needs.
type Attr struct {
	Size      int64
	BlockSize int64
	Blocks    int64
}

// Stream is the host's open-file state. Only the position is tracked.
type Stream struct {
	Position int64
}

// FileOps is the callback surface a host filesystem uses to read a file.
type FileOps interface {
	Stat(ctx context.Context) (Attr, error)
	Seek(ctx context.Context, s *Stream, offset int64, whence Whence) (int64, error)
	Read(ctx context.Context, s *Stream, buf []byte, bufOffset, length int, fileOffset int64) (int, error)
}

// RandomAccessFile is what the adaptor delegates to; *rangefile.File satisfies it.
type RandomAccessFile interface {
	Size(ctx context.Context) (int64, error)
	ReadAt(ctx context.Context, offset int64, length int, dst []byte, dstOffset int) (int, error)
}

// Adaptor implements FileOps by delegation. It holds no state of its own.
type Adaptor struct {
	file RandomAccessFile
}

var _ FileOps = (*Adaptor)(nil)

// NewAdaptor returns an Adaptor over f.
func NewAdaptor(f RandomAccessFile) *Adaptor {
	return &Adaptor{file: f}
}

// Stat reports the remote size and the derived block count.
func (a *Adaptor) Stat(ctx context.Context) (Attr, error) {
	size, err := a.file.Size(ctx)
	if err != nil {
		return Attr{}, err
	}
	return Attr{
		Size:      size,
		BlockSize: BlockSize,
		Blocks:    (size + BlockSize - 1) / BlockSize,
	}, nil
}

// Seek moves s and returns the new position.
func (a *Adaptor) Seek(ctx context.Context, s *Stream, offset int64, whence Whence) (int64, error) {
	var pos int64
	switch whence {
	case SeekSet:
		pos = offset
	case SeekCur:
		pos = s.Position + offset
	case SeekEnd:
		size, err := a.file.Size(ctx)
		if err != nil {
			return s.Position, err
		}
		pos = size + offset
	default:
		return s.Position, fmt.Errorf("seek whence %d: %w", whence, ErrInvalidArgument)
	}
	if pos < 0 {
		return s.Position, fmt.Errorf("seek to %d: %w", pos, ErrInvalidArgument)
	}
	s.Position = pos
	return pos, nil
}

// Read fills buf[bufOffset:bufOffset+length] from fileOffset. The stream
// position is left to the host, which passes the offset explicitly.
func (a *Adaptor) Read(ctx context.Context, _ *Stream, buf []byte, bufOffset, length int, fileOffset int64) (int, error) {
	return a.file.ReadAt(ctx, fileOffset, length, buf, bufOffset)
}
