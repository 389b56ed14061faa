package gate

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openutm/bootstack/internal/endpoint"
	"golang.org/x/sync/errgroup"
)

// Gate blocks until every required service endpoint accepts a TCP
// connection, or the deadline elapses. It never retries past the deadline;
// restart policy belongs to the container orchestrator above it.
type Gate struct {
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration

	// Deadline bounds the whole wait across all endpoints.
	Deadline time.Duration

	// Interval is the pause between attempts against one endpoint.
	Interval time.Duration

	// Parallel probes all endpoints concurrently instead of in order.
	Parallel bool

	// Logf receives human-readable progress lines. Defaults to stdout.
	Logf func(format string, args ...any)
}

const (
	DefaultDialTimeout = 2 * time.Second
	DefaultDeadline    = 60 * time.Second
	DefaultInterval    = time.Second
)

// New returns a gate with the default timings.
func New() *Gate {
	return &Gate{
		DialTimeout: DefaultDialTimeout,
		Deadline:    DefaultDeadline,
		Interval:    DefaultInterval,
	}
}

// UnreachableError reports every endpoint that never became reachable
// within the gate's deadline.
type UnreachableError struct {
	Endpoints []endpoint.Endpoint
}

func (e *UnreachableError) Error() string {
	names := make([]string, 0, len(e.Endpoints))
	for _, ep := range e.Endpoints {
		names = append(names, ep.String())
	}
	return fmt.Sprintf("timed out waiting for %s", strings.Join(names, ", "))
}

// Wait blocks until all endpoints are reachable. On deadline it returns an
// *UnreachableError naming the endpoints that never answered.
func (g *Gate) Wait(ctx context.Context, endpoints []endpoint.Endpoint) error {
	if len(endpoints) == 0 {
		return nil
	}

	logf := g.logf()
	for _, ep := range endpoints {
		logf("waiting for %s to accept connections...\n", ep)
	}

	ctx, cancel := context.WithTimeout(ctx, g.deadline())
	defer cancel()

	if g.Parallel {
		return g.waitParallel(ctx, endpoints)
	}
	return g.waitSequential(ctx, endpoints)
}

func (g *Gate) waitSequential(ctx context.Context, endpoints []endpoint.Endpoint) error {
	for i, ep := range endpoints {
		if err := g.waitOne(ctx, ep); err != nil {
			// Anything after the first failure shares the same expired
			// deadline; report the whole remainder as unreachable.
			return &UnreachableError{Endpoints: endpoints[i:]}
		}
		g.logf()("%s is ready\n", ep)
	}
	return nil
}

func (g *Gate) waitParallel(ctx context.Context, endpoints []endpoint.Endpoint) error {
	var (
		mu     sync.Mutex
		failed []endpoint.Endpoint
	)

	grp, ctx := errgroup.WithContext(ctx)
	for _, ep := range endpoints {
		grp.Go(func() error {
			if err := g.waitOne(ctx, ep); err != nil {
				mu.Lock()
				failed = append(failed, ep)
				mu.Unlock()
				return err
			}
			g.logf()("%s is ready\n", ep)
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return &UnreachableError{Endpoints: failed}
	}
	return nil
}

// waitOne dials the endpoint until it answers or the context expires.
func (g *Gate) waitOne(ctx context.Context, ep endpoint.Endpoint) error {
	dialer := net.Dialer{Timeout: g.dialTimeout()}
	for {
		conn, err := dialer.DialContext(ctx, "tcp", ep.Addr())
		if err == nil {
			conn.Close()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.interval()):
		}
	}
}

// WaitFile blocks until the file at path exists, or the deadline elapses.
// Worker containers use this against the migration-completion marker so they
// never act on a schema the server has not finished migrating.
func (g *Gate) WaitFile(ctx context.Context, path string) error {
	logf := g.logf()
	logf("waiting for marker %s...\n", path)

	ctx, cancel := context.WithTimeout(ctx, g.deadline())
	defer cancel()

	for {
		if _, err := os.Stat(path); err == nil {
			logf("marker %s present\n", path)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for marker %s", path)
		case <-time.After(g.interval()):
		}
	}
}

func (g *Gate) logf() func(string, ...any) {
	if g.Logf != nil {
		return g.Logf
	}
	return func(format string, args ...any) {
		fmt.Printf(format, args...)
	}
}

func (g *Gate) dialTimeout() time.Duration {
	if g.DialTimeout > 0 {
		return g.DialTimeout
	}
	return DefaultDialTimeout
}

func (g *Gate) deadline() time.Duration {
	if g.Deadline > 0 {
		return g.Deadline
	}
	return DefaultDeadline
}

func (g *Gate) interval() time.Duration {
	if g.Interval > 0 {
		return g.Interval
	}
	return DefaultInterval
}
