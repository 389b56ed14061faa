package launch

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openutm/bootstack/internal/endpoint"
	"github.com/openutm/bootstack/internal/gate"
	"github.com/openutm/bootstack/internal/manifest"
)

// recorder captures every external command and the exec hand-off in order,
// so tests can assert the bootstrap sequence without spawning processes.
type recorder struct {
	calls   []string
	failOn  string
	execed  [][]string
	execErr error
}

func (r *recorder) Run(ctx context.Context, name string, args ...string) error {
	call := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, call)
	if r.failOn != "" && strings.Contains(call, r.failOn) {
		return fmt.Errorf("command %q failed", call)
	}
	return nil
}

func (r *recorder) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, r.Run(ctx, name, args...)
}

func (r *recorder) exec(argv []string) error {
	r.execed = append(r.execed, argv)
	r.calls = append(r.calls, "exec "+strings.Join(argv, " "))
	return r.execErr
}

func testLauncher(m manifest.Manifest) (*Launcher, *recorder) {
	rec := &recorder{}
	g := gate.New()
	g.Logf = func(string, ...any) {}
	g.Deadline = 2 * time.Second
	g.Interval = 10 * time.Millisecond

	return &Launcher{
		Manifest: m,
		Gate:     g,
		Runner:   rec,
		Exec:     rec.exec,
		Logf:     func(string, ...any) {},
	}, rec
}

func TestRun_ServerMigratesBeforeServing(t *testing.T) {
	launcher, rec := testLauncher(manifest.Default())

	if err := launcher.Run(context.Background(), ModeServer, nil); err != nil {
		t.Fatalf("Server bootstrap failed: %v", err)
	}

	if len(rec.calls) != 2 {
		t.Fatalf("Expected migrate then exec, got %v", rec.calls)
	}
	if !strings.HasPrefix(rec.calls[0], "python manage.py migrate") {
		t.Errorf("First call should be the migration, got %q", rec.calls[0])
	}
	if !strings.HasPrefix(rec.calls[1], "exec gunicorn") {
		t.Errorf("Second call should be the server exec, got %q", rec.calls[1])
	}

	argv := rec.execed[0]
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "--bind 0.0.0.0:8000") || !strings.Contains(joined, "--workers 3") {
		t.Errorf("Server argv missing fixed bind/concurrency: %v", argv)
	}
}

func TestRun_WorkerNeverMigrates(t *testing.T) {
	launcher, rec := testLauncher(manifest.Default())

	if err := launcher.Run(context.Background(), ModeWorker, nil); err != nil {
		t.Fatalf("Worker bootstrap failed: %v", err)
	}

	for _, call := range rec.calls {
		if strings.Contains(call, "migrate") {
			t.Errorf("Worker mode must not run migrations: %v", rec.calls)
		}
	}
	if len(rec.execed) != 1 {
		t.Fatalf("Expected one exec, got %v", rec.execed)
	}
	joined := strings.Join(rec.execed[0], " ")
	if !strings.HasPrefix(joined, "celery") || !strings.Contains(joined, "--loglevel info") {
		t.Errorf("Unexpected worker argv: %v", rec.execed[0])
	}
}

func TestRun_MigrationFailureAbortsStartup(t *testing.T) {
	launcher, rec := testLauncher(manifest.Default())
	rec.failOn = "migrate"

	err := launcher.Run(context.Background(), ModeServer, nil)
	if err == nil {
		t.Fatal("Expected migration failure to abort startup")
	}
	if !strings.Contains(err.Error(), "migration failed") {
		t.Errorf("Unexpected error: %v", err)
	}
	if len(rec.execed) != 0 {
		t.Errorf("Server must not start after a failed migration: %v", rec.execed)
	}
}

func TestRun_UnreachableDependencyAbortsStartup(t *testing.T) {
	launcher, rec := testLauncher(manifest.Default())
	launcher.Gate.Deadline = 150 * time.Millisecond

	// A port nothing listens on: bind, read its port, close.
	unreachable := endpoint.Endpoint{Name: "cache", Host: "127.0.0.1", Port: reservePort(t)}

	err := launcher.Run(context.Background(), ModeServer, []endpoint.Endpoint{unreachable})
	if err == nil {
		t.Fatal("Expected gate failure for unreachable dependency")
	}
	if len(rec.calls) != 0 {
		t.Errorf("No command may run before the gate passes: %v", rec.calls)
	}
}

func TestRun_PreServeStepRunsFirstAndStaysSkippable(t *testing.T) {
	m := manifest.Default()
	m.Server.PreServe = []string{"python", "manage.py", "collectstatic", "--noinput"}

	launcher, rec := testLauncher(m)
	if err := launcher.Run(context.Background(), ModeServer, nil); err != nil {
		t.Fatalf("Server bootstrap failed: %v", err)
	}
	if len(rec.calls) != 3 || !strings.Contains(rec.calls[0], "collectstatic") {
		t.Fatalf("Pre-serve step should run before migration: %v", rec.calls)
	}

	// Disabled by default: the rest of the sequence is unchanged.
	launcher2, rec2 := testLauncher(manifest.Default())
	if err := launcher2.Run(context.Background(), ModeServer, nil); err != nil {
		t.Fatalf("Server bootstrap failed: %v", err)
	}
	if len(rec2.calls) != 2 {
		t.Errorf("Skipped pre-serve step must not alter the sequence: %v", rec2.calls)
	}
}

func TestRun_ServerWritesMigrationMarker(t *testing.T) {
	m := manifest.Default()
	m.Marker = filepath.Join(t.TempDir(), "state", ".migrated")

	launcher, _ := testLauncher(m)
	if err := launcher.Run(context.Background(), ModeServer, nil); err != nil {
		t.Fatalf("Server bootstrap failed: %v", err)
	}

	if _, err := os.Stat(m.Marker); err != nil {
		t.Errorf("Marker not written after migration: %v", err)
	}
}

func TestRun_WorkerWaitsForMigrationMarker(t *testing.T) {
	m := manifest.Default()
	m.Marker = filepath.Join(t.TempDir(), ".migrated")

	launcher, rec := testLauncher(m)
	launcher.Gate.Deadline = 2 * time.Second

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(m.Marker, []byte("done\n"), 0o644)
	}()

	if err := launcher.Run(context.Background(), ModeWorker, nil); err != nil {
		t.Fatalf("Worker bootstrap failed: %v", err)
	}
	if len(rec.execed) != 1 {
		t.Errorf("Worker should exec after the marker appears: %v", rec.execed)
	}
}

func TestRun_WorkerMarkerTimeoutAbortsStartup(t *testing.T) {
	m := manifest.Default()
	m.Marker = filepath.Join(t.TempDir(), ".never")

	launcher, rec := testLauncher(m)
	launcher.Gate.Deadline = 150 * time.Millisecond

	if err := launcher.Run(context.Background(), ModeWorker, nil); err == nil {
		t.Fatal("Expected marker timeout to abort worker startup")
	}
	if len(rec.execed) != 0 {
		t.Errorf("Worker must not start without the marker: %v", rec.execed)
	}
}

func TestMode_String(t *testing.T) {
	if ModeServer.String() != "server" || ModeWorker.String() != "worker" {
		t.Error("Unexpected mode names")
	}
}

// reservePort binds an ephemeral port and closes it again, yielding a port
// with no listener behind it.
func reservePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}
