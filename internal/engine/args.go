package engine

import "fmt"

// DefaultTileHeight is the pixel height every filmstrip tile is scaled to.
const DefaultTileHeight = 52

// TranscodeArgs builds the filmstrip pass: decode key frames only, drop
// audio, subtitles and chapters, square the pixels and scale to tileHeight,
// then store each frame as an independent JPEG inside one MP4, keeping the
// source timestamps.
func TranscodeArgs(input, output string, tileHeight int) []string {
	if tileHeight <= 0 {
		tileHeight = DefaultTileHeight
	}
	return []string{
		ProgramFFmpeg,
		"-discard", "nokey",
		"-i", input,
		"-an",
		"-sn",
		"-map_chapters", "-1",
		"-vf", fmt.Sprintf("scale=iw*sar:ih:fast_bilinear,scale=-1:%d:fast_bilinear", tileHeight),
		"-c:v", "mjpeg",
		"-pix_fmt", "yuvj420p",
		"-f", "mp4",
		"-fps_mode", "passthrough",
		"-y",
		output,
	}
}

// ProbeArgs builds the probe pass that prints one compact line per packet
// plus the format record.
func ProbeArgs(path string) []string {
	return []string{
		ProgramFFprobe,
		"-print_format", "compact",
		"-show_packets",
		"-show_format",
		"-i", path,
	}
}
