package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Loader resolves and verifies the engine binaries once and hands out the
// same Engine afterwards. A failed load is not memoized.
type Loader struct {
	ffmpeg  string
	ffprobe string
	log     *slog.Logger

	mu     sync.Mutex
	loaded *Exec
}

// NewLoader returns a Loader for the given program names or paths. Empty
// names default to "ffmpeg" and "ffprobe" on PATH.
func NewLoader(ffmpeg, ffprobe string, log *slog.Logger) *Loader {
	ffmpeg = strings.TrimSpace(ffmpeg)
	if ffmpeg == "" {
		ffmpeg = ProgramFFmpeg
	}
	ffprobe = strings.TrimSpace(ffprobe)
	if ffprobe == "" {
		ffprobe = ProgramFFprobe
	}
	return &Loader{ffmpeg: ffmpeg, ffprobe: ffprobe, log: log}
}

// Load resolves ffmpeg and ffprobe concurrently and runs "-version" on each.
// Both must succeed before the Engine is returned.
func (l *Loader) Load(ctx context.Context) (Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded != nil {
		return l.loaded, nil
	}

	var bin Binaries
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, version, err := resolveBinary(gctx, l.ffmpeg)
		bin.FFmpeg, bin.FFmpegVersion = path, version
		return err
	})
	g.Go(func() error {
		path, version, err := resolveBinary(gctx, l.ffprobe)
		bin.FFprobe, bin.FFprobeVersion = path, version
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load engine: %w", err)
	}

	l.log.Info("engine loaded",
		slog.String("ffmpeg", bin.FFmpeg),
		slog.String("ffmpeg_version", bin.FFmpegVersion),
		slog.String("ffprobe", bin.FFprobe),
		slog.String("ffprobe_version", bin.FFprobeVersion))

	l.loaded = NewExec(bin, l.log)
	return l.loaded, nil
}

func resolveBinary(ctx context.Context, name string) (path, version string, err error) {
	path, err = exec.LookPath(name)
	if err != nil {
		return "", "", fmt.Errorf("binary %q not found: %w", name, err)
	}

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", "", fmt.Errorf("%s -version: %w", path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		version = strings.TrimSpace(scanner.Text())
	}
	return path, version, nil
}
