package launch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openutm/bootstack/internal/endpoint"
	"github.com/openutm/bootstack/internal/gate"
	"github.com/openutm/bootstack/internal/manifest"
	"github.com/openutm/bootstack/internal/proc"
)

// Mode selects which long-running process a container launches. Exactly one
// mode runs per container instance.
type Mode int

const (
	ModeServer Mode = iota
	ModeWorker
)

func (m Mode) String() string {
	switch m {
	case ModeServer:
		return "server"
	case ModeWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// Launcher is the in-container bootstrap path: readiness gate, mode-specific
// one-time setup, then an exec-style hand-off to the long-running process.
type Launcher struct {
	Manifest manifest.Manifest
	Gate     *gate.Gate
	Runner   proc.Runner

	// Exec replaces the current process with argv. Defaults to proc.Replace;
	// tests substitute a recorder.
	Exec func(argv []string) error

	// Logf receives the ordered phase lines. Defaults to stdout.
	Logf func(format string, args ...any)
}

// New returns a launcher wired to the real gate and process runner.
func New(m manifest.Manifest) *Launcher {
	return &Launcher{
		Manifest: m,
		Gate:     gate.New(),
		Runner:   proc.NewExecRunner(),
	}
}

// Run drives the bootstrap sequence for the given mode. On success the exec
// hand-off does not return; any returned error means the long-running
// process was never started.
func (l *Launcher) Run(ctx context.Context, mode Mode, endpoints []endpoint.Endpoint) error {
	logf := l.logf()

	logf("[%s] waiting for dependencies\n", mode)
	if err := l.Gate.Wait(ctx, endpoints); err != nil {
		return fmt.Errorf("dependency gate failed: %w", err)
	}

	switch mode {
	case ModeServer:
		return l.runServer(ctx)
	case ModeWorker:
		return l.runWorker(ctx)
	default:
		return fmt.Errorf("unknown run mode %d", mode)
	}
}

func (l *Launcher) runServer(ctx context.Context) error {
	logf := l.logf()

	if pre := l.Manifest.Server.PreServe; len(pre) > 0 {
		logf("[server] running pre-serve step: %s\n", strings.Join(pre, " "))
		if err := l.Runner.Run(ctx, pre[0], pre[1:]...); err != nil {
			return fmt.Errorf("pre-serve step failed: %w", err)
		}
	}

	logf("[server] migrating\n")
	migrate := l.Manifest.Migrate
	if err := l.Runner.Run(ctx, migrate[0], migrate[1:]...); err != nil {
		// Serving an unmigrated schema is never acceptable.
		return fmt.Errorf("migration failed: %w", err)
	}

	if err := l.writeMarker(); err != nil {
		return err
	}

	argv := l.Manifest.ServerArgv()
	logf("[server] starting: %s\n", strings.Join(argv, " "))
	return l.exec(argv)
}

func (l *Launcher) runWorker(ctx context.Context) error {
	logf := l.logf()

	if marker := l.Manifest.Marker; marker != "" {
		if err := l.Gate.WaitFile(ctx, marker); err != nil {
			return fmt.Errorf("migration barrier failed: %w", err)
		}
	}

	argv := l.Manifest.WorkerArgv()
	logf("[worker] starting: %s\n", strings.Join(argv, " "))
	return l.exec(argv)
}

// writeMarker records migration completion on the shared volume so worker
// containers can gate on it. No-op when no marker path is configured.
func (l *Launcher) writeMarker() error {
	marker := l.Manifest.Marker
	if marker == "" {
		return nil
	}
	if dir := filepath.Dir(marker); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create marker directory: %w", err)
		}
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(marker, []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("failed to write migration marker: %w", err)
	}
	return nil
}

func (l *Launcher) exec(argv []string) error {
	execFn := l.Exec
	if execFn == nil {
		execFn = proc.Replace
	}
	if err := execFn(argv); err != nil {
		return fmt.Errorf("failed to start %s: %w", argv[0], err)
	}
	return nil
}

func (l *Launcher) logf() func(string, ...any) {
	if l.Logf != nil {
		return l.Logf
	}
	return func(format string, args ...any) {
		fmt.Printf(format, args...)
	}
}
