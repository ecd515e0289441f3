package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"filmstrip/internal/engine"
	"filmstrip/internal/platform/metrics"
	"filmstrip/internal/rangefile"
	"filmstrip/internal/trace"
	"filmstrip/internal/vfs"
)

// ArtifactContentType is the MIME type of the composite artifact.
const ArtifactContentType = "video/mp4"

const (
	artifactName     = "filmstrip"
	mountBaseName    = "input"
	tempDirPattern   = "filmstrip-*"
	defaultMountAddr = "127.0.0.1:0"
)

// State is the orchestrator's position in one generation.
type State int32

const (
	StateIdle State = iota
	StateLoadingEngine
	StateTranscoding
	StateProbing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingEngine:
		return "loading_engine"
	case StateTranscoding:
		return "transcoding"
	case StateProbing:
		return "probing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// EngineLoader yields a ready Engine. *engine.Loader satisfies it.
type EngineLoader interface {
	Load(ctx context.Context) (engine.Engine, error)
}

// Config holds the generation parameters. Zero values select defaults.
type Config struct {
	WorkDir    string
	TileHeight int
	FetchSize  int64
	HTTPClient *http.Client
	MountAddr  string
}

// Result is a completed generation.
type Result struct {
	ArtifactPath string
	ContentType  string
	Segments     []trace.Segment
	Format       map[string]string
}

// Orchestrator drives the two engine passes that turn a remote video into a
// filmstrip: a transcode reading the video through a virtual file, then a
// probe whose compact output locates every tile.
type Orchestrator struct {
	loader  EngineLoader
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	state atomic.Int32
}

// New returns an Orchestrator. Metrics may be nil to disable metric recording.
func New(loader EngineLoader, cfg Config, log *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.TileHeight <= 0 {
		cfg.TileHeight = engine.DefaultTileHeight
	}
	if cfg.FetchSize <= 0 {
		cfg.FetchSize = rangefile.DefaultFetchSize
	}
	if cfg.MountAddr == "" {
		cfg.MountAddr = defaultMountAddr
	}
	return &Orchestrator{loader: loader, cfg: cfg, log: log, metrics: m}
}

// State reports the current state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	prev := State(o.state.Swap(int32(s)))
	o.log.Debug("orchestrator state", slog.String("from", prev.String()), slog.String("to", s.String()))
}

// Generate runs both passes for v. The context is checked before each pass
// only; a pass that has started runs to completion.
func (o *Orchestrator) Generate(ctx context.Context, v Video) (res *Result, err error) {
	stage := engine.StageLoad
	defer func() {
		if err != nil {
			o.setState(StateFailed)
			if o.metrics != nil {
				o.metrics.IncFailure(string(stage))
			}
			o.log.Warn("filmstrip generation failed",
				slog.String("url", v.URL),
				slog.String("stage", string(stage)),
				slog.String("error", err.Error()))
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.setState(StateLoadingEngine)
	eng, err := o.loader.Load(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}

	// The work dir holds the transcode output, so failing to create it
	// fails that pass.
	stage = engine.StageTranscode
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(o.cfg.WorkDir, tempDirPattern)
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()
	output := filepath.Join(dir, artifactName)

	o.setState(StateTranscoding)
	if err := o.transcode(context.WithoutCancel(ctx), eng, v, output); err != nil {
		return nil, err
	}

	stage = engine.StageProbe
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.setState(StateProbing)
	collector, err := o.probe(context.WithoutCancel(ctx), eng, output)
	if err != nil {
		return nil, err
	}

	o.setState(StateComplete)
	o.log.Info("filmstrip generated",
		slog.String("url", v.URL),
		slog.String("artifact", output),
		slog.Int("segments", len(collector.Segments())),
		slog.Int("trace_lines", collector.Lines()))

	return &Result{
		ArtifactPath: output,
		ContentType:  ArtifactContentType,
		Segments:     collector.Segments(),
		Format:       collector.Format(),
	}, nil
}

func (o *Orchestrator) transcode(ctx context.Context, eng engine.Engine, v Video, output string) error {
	opts := []rangefile.Option{
		rangefile.WithFetchSize(o.cfg.FetchSize),
		rangefile.WithHTTPClient(o.cfg.HTTPClient),
		rangefile.WithLogger(o.log),
	}
	if v.SizeHint != nil {
		opts = append(opts, rangefile.WithSizeHint(*v.SizeHint))
	}
	if o.metrics != nil {
		opts = append(opts, rangefile.WithObserver(o.metrics))
	}
	remote := rangefile.New(v.URL, opts...)

	mount, err := vfs.NewMount(ctx, o.cfg.MountAddr, mountName(v), vfs.NewAdaptor(remote), o.log)
	if err != nil {
		return err
	}
	defer mount.Close()

	stdout := trace.NewLineAssembler(o.logLine(engine.StageTranscode, "stdout"))
	stderr := trace.NewLineAssembler(o.logLine(engine.StageTranscode, "stderr"))

	start := time.Now()
	code, err := eng.Run(ctx, engine.TranscodeArgs(mount.URL(), output, o.cfg.TileHeight), stdout, stderr)
	stdout.Flush()
	stderr.Flush()
	o.observePass(engine.StageTranscode, start)

	// The engine usually fails when its input does; report the cause.
	if mountErr := mount.Err(); mountErr != nil {
		return fmt.Errorf("read %s: %w", v.URL, mountErr)
	}
	if err != nil {
		return err
	}
	if code != 0 {
		return &engine.Error{Stage: engine.StageTranscode, ExitCode: code}
	}
	return nil
}

func (o *Orchestrator) probe(ctx context.Context, eng engine.Engine, output string) (*trace.Collector, error) {
	collector := &trace.Collector{
		OnRecord: func(rec trace.Record) {
			if rec.IsFormat() {
				o.log.Debug("probe format",
					slog.String("format_name", rec.Properties["format_name"]),
					slog.String("duration", rec.Properties["duration"]))
			}
		},
	}

	// stdout and stderr are written from separate goroutines.
	var mu sync.Mutex
	emit := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		collector.Line(line)
	}
	stdout := trace.NewLineAssembler(emit)
	stderr := trace.NewLineAssembler(emit)

	start := time.Now()
	code, err := eng.Run(ctx, engine.ProbeArgs(output), stdout, stderr)
	stdout.Flush()
	stderr.Flush()
	o.observePass(engine.StageProbe, start)

	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, &engine.Error{Stage: engine.StageProbe, ExitCode: code}
	}
	return collector, nil
}

func (o *Orchestrator) logLine(stage engine.Stage, channel string) func(string) {
	return func(line string) {
		o.log.Debug("engine output",
			slog.String("stage", string(stage)),
			slog.String("channel", channel),
			slog.String("line", line))
	}
}

func (o *Orchestrator) observePass(stage engine.Stage, start time.Time) {
	elapsed := time.Since(start)
	o.log.Debug("engine pass finished",
		slog.String("stage", string(stage)),
		slog.Int64("duration_ms", elapsed.Milliseconds()))
	if o.metrics != nil {
		o.metrics.ObservePass(string(stage), elapsed.Seconds())
	}
}

// mountName names the virtual file after the source's extension so the
// engine can use it as a demuxer hint. The display name wins over the URL.
func mountName(v Video) string {
	ext := filepath.Ext(v.DisplayName)
	if ext == "" {
		if u, err := url.Parse(v.URL); err == nil {
			ext = path.Ext(u.Path)
		}
	}
	if ext == "." {
		ext = ""
	}
	return mountBaseName + strings.ToLower(ext)
}
