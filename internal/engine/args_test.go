package engine

import (
	"reflect"
	"testing"
)

func TestTranscodeArgs(t *testing.T) {
	got := TranscodeArgs("http://127.0.0.1:4000/input.mp4", "/tmp/x/filmstrip", 52)
	want := []string{
		"ffmpeg",
		"-discard", "nokey",
		"-i", "http://127.0.0.1:4000/input.mp4",
		"-an",
		"-sn",
		"-map_chapters", "-1",
		"-vf", "scale=iw*sar:ih:fast_bilinear,scale=-1:52:fast_bilinear",
		"-c:v", "mjpeg",
		"-pix_fmt", "yuvj420p",
		"-f", "mp4",
		"-fps_mode", "passthrough",
		"-y",
		"/tmp/x/filmstrip",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestTranscodeArgs_default_height(t *testing.T) {
	got := TranscodeArgs("in", "out", 0)
	if got[10] != "scale=iw*sar:ih:fast_bilinear,scale=-1:52:fast_bilinear" {
		t.Errorf("filter = %q", got[10])
	}
}

func TestProbeArgs(t *testing.T) {
	got := ProbeArgs("/tmp/x/filmstrip")
	want := []string{"ffprobe", "-print_format", "compact", "-show_packets", "-show_format", "-i", "/tmp/x/filmstrip"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}
