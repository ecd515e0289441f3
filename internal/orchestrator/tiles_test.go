package orchestrator

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"filmstrip/internal/trace"
)

func TestTileRange(t *testing.T) {
	got := TileRange(trace.Segment{ByteOffset: 48, SizeInBytes: 1543})
	if got != "bytes=48-1590" {
		t.Errorf("got %q, want bytes=48-1590", got)
	}
}

func TestTileRange_empty_segment(t *testing.T) {
	for _, seg := range []trace.Segment{
		{ByteOffset: 48, SizeInBytes: 0},
		{ByteOffset: 48, SizeInBytes: -3},
		{ByteOffset: -1, SizeInBytes: 10},
	} {
		if got := TileRange(seg); got != "" {
			t.Errorf("TileRange(%+v) = %q, want empty", seg, got)
		}
	}
}

func TestReadTile(t *testing.T) {
	artifact := bytes.NewReader([]byte("headerAAAABBBBBB"))

	tile, err := ReadTile(artifact, trace.Segment{ByteOffset: 6, SizeInBytes: 4})
	if err != nil || string(tile) != "AAAA" {
		t.Errorf("first tile: %q, %v", tile, err)
	}

	// The last tile ends exactly at the end of the artifact.
	tile, err = ReadTile(artifact, trace.Segment{ByteOffset: 10, SizeInBytes: 6})
	if err != nil || string(tile) != "BBBBBB" {
		t.Errorf("last tile: %q, %v", tile, err)
	}
}

func TestReadTile_truncated(t *testing.T) {
	_, err := ReadTile(bytes.NewReader([]byte("short")), trace.Segment{ByteOffset: 2, SizeInBytes: 10})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadTile_invalid_segment(t *testing.T) {
	for _, seg := range []trace.Segment{
		{ByteOffset: -1, SizeInBytes: 4},
		{ByteOffset: 0, SizeInBytes: 0},
	} {
		if _, err := ReadTile(bytes.NewReader(nil), seg); !errors.Is(err, ErrInvalidTile) {
			t.Errorf("%+v: expected ErrInvalidTile, got %v", seg, err)
		}
	}
}
