// Package engine runs ffmpeg and ffprobe as opaque child processes: an
// argument list in, diagnostic output and an exit code out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// Program names accepted as the first argument of Run.
const (
	ProgramFFmpeg  = "ffmpeg"
	ProgramFFprobe = "ffprobe"
)

// Stage names the pass an engine failure belongs to.
type Stage string

const (
	StageLoad      Stage = "load"
	StageTranscode Stage = "transcode"
	StageProbe     Stage = "probe"
)

// Error reports a pass that ran to completion with a non-zero exit code.
type Error struct {
	Stage    Stage
	ExitCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s pass failed with exit code %d", e.Stage, e.ExitCode)
}

// Engine executes one command at a time. args[0] selects the program.
// A non-zero exit is reported through the code; err is reserved for
// failures to start or wait for the process.
type Engine interface {
	Run(ctx context.Context, args []string, stdout, stderr io.Writer) (exitCode int, err error)
}

// Binaries are the resolved program paths and their version banners.
type Binaries struct {
	FFmpeg         string
	FFprobe        string
	FFmpegVersion  string
	FFprobeVersion string
}

// Exec is the process-backed Engine.
type Exec struct {
	bin Binaries
	log *slog.Logger
}

var _ Engine = (*Exec)(nil)

// NewExec returns an Engine running the given binaries.
func NewExec(bin Binaries, log *slog.Logger) *Exec {
	return &Exec{bin: bin, log: log}
}

// Run starts the program named by args[0] with the remaining arguments and
// waits for it. stdout and stderr receive the raw diagnostic streams.
func (e *Exec) Run(ctx context.Context, args []string, stdout, stderr io.Writer) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}

	var binary string
	switch args[0] {
	case ProgramFFmpeg:
		binary = e.bin.FFmpeg
	case ProgramFFprobe:
		binary = e.bin.FFprobe
	default:
		fmt.Fprintf(stderr, "First argument must be either '%s' or '%s'.\n", ProgramFFmpeg, ProgramFFprobe)
		return 1, nil
	}

	e.log.Debug("engine command", slog.String("program", args[0]), slog.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, binary, args[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("run %s: %w", args[0], err)
}
