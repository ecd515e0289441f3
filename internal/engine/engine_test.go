package engine

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmstrip/internal/platform/logger"
)

// writeScript drops an executable shell script into dir and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestExec_Run_dispatch(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeScript(t, dir, "ffmpeg", "echo \"ffmpeg $*\"\necho warn >&2\nexit 0\n")
	ffprobe := writeScript(t, dir, "ffprobe", "echo \"ffprobe $*\"\nexit 3\n")
	e := NewExec(Binaries{FFmpeg: ffmpeg, FFprobe: ffprobe}, logger.Discard())

	var stdout, stderr bytes.Buffer
	code, err := e.Run(context.Background(), []string{"ffmpeg", "-i", "x"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "ffmpeg -i x\n", stdout.String())
	assert.Equal(t, "warn\n", stderr.String())

	stdout.Reset()
	stderr.Reset()
	code, err = e.Run(context.Background(), []string{"ffprobe", "-show_format"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "ffprobe -show_format\n", stdout.String())
}

func TestExec_Run_unknown_program(t *testing.T) {
	e := NewExec(Binaries{}, logger.Discard())

	var stdout, stderr bytes.Buffer
	code, err := e.Run(context.Background(), []string{"x264", "-h"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Equal(t, "First argument must be either 'ffmpeg' or 'ffprobe'.\n", stderr.String())
	assert.Empty(t, stdout.String())
}

func TestExec_Run_no_args(t *testing.T) {
	e := NewExec(Binaries{}, logger.Discard())
	code, err := e.Run(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestExec_Run_start_failure(t *testing.T) {
	e := NewExec(Binaries{FFmpeg: filepath.Join(t.TempDir(), "missing")}, logger.Discard())
	code, err := e.Run(context.Background(), []string{"ffmpeg"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestLoader_Load_memoizes(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeScript(t, dir, "ffmpeg", "echo 'ffmpeg version 7.1 Copyright'\necho 'built with gcc'\n")
	ffprobe := writeScript(t, dir, "ffprobe", "echo 'ffprobe version 7.1 Copyright'\n")

	l := NewLoader(ffmpeg, ffprobe, logger.Discard())
	first, err := l.Load(context.Background())
	require.NoError(t, err)
	second, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)

	bin := first.(*Exec).bin
	assert.Equal(t, ffmpeg, bin.FFmpeg)
	assert.Equal(t, "ffmpeg version 7.1 Copyright", bin.FFmpegVersion)
	assert.Equal(t, "ffprobe version 7.1 Copyright", bin.FFprobeVersion)
}

func TestLoader_Load_missing_binary(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeScript(t, dir, "ffmpeg", "echo 'ffmpeg version 7.1'\n")

	l := NewLoader(ffmpeg, filepath.Join(dir, "no-such-ffprobe"), logger.Discard())
	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no-such-ffprobe"), err.Error())

	// Failures are not memoized.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "no-such-ffprobe"), []byte("#!/bin/sh\necho 'ffprobe version 7.1'\n"), 0o755))
	_, err = l.Load(context.Background())
	assert.NoError(t, err)
}

func TestLoader_Load_version_failure(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeScript(t, dir, "ffmpeg", "exit 1\n")
	ffprobe := writeScript(t, dir, "ffprobe", "echo 'ffprobe version 7.1'\n")

	_, err := NewLoader(ffmpeg, ffprobe, logger.Discard()).Load(context.Background())
	assert.Error(t, err)
}

func TestNewLoader_defaults(t *testing.T) {
	l := NewLoader(" ", "", logger.Discard())
	assert.Equal(t, ProgramFFmpeg, l.ffmpeg)
	assert.Equal(t, ProgramFFprobe, l.ffprobe)
}

func TestError_message(t *testing.T) {
	err := &Error{Stage: StageProbe, ExitCode: 2}
	assert.Equal(t, "probe pass failed with exit code 2", err.Error())
}
