package stack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/openutm/bootstack/internal/manifest"
	"github.com/openutm/bootstack/internal/proc"
)

// Profile selects which stack definition file the controller drives.
type Profile int

const (
	ProfileDefault Profile = iota
	ProfileDev
)

func (p Profile) String() string {
	switch p {
	case ProfileDefault:
		return "default"
	case ProfileDev:
		return "development"
	default:
		return "unknown"
	}
}

// Controller is the host-side driver for the multi-container stack. Every
// provisioning step is idempotent; every infrastructure failure surfaces
// the underlying tool's error verbatim, with no internal retries.
type Controller struct {
	Manifest manifest.Manifest
	Runner   proc.Runner

	// Dir anchors relative manifest paths. Empty means the current
	// directory.
	Dir string

	// Logf receives operator progress lines. Defaults to stdout.
	Logf func(format string, args ...any)
}

// NewController returns a controller that shells out to docker.
func NewController(m manifest.Manifest) *Controller {
	return &Controller{Manifest: m, Runner: proc.NewExecRunner()}
}

// Up drives the full bring-up sequence: config seeding, script permissions,
// network provisioning, teardown of any previous instance, then a blocking
// rebuild-and-start of the selected stack.
func (c *Controller) Up(ctx context.Context, profile Profile, reset bool) error {
	if err := c.EnsureConfig(); err != nil {
		return err
	}
	c.EnsureExecutable()
	if err := c.EnsureNetwork(ctx); err != nil {
		return err
	}
	if err := c.Down(ctx, profile, reset); err != nil {
		return err
	}
	return c.start(ctx, profile)
}

// EnsureConfig seeds each configured target from its sample template when
// the target is absent. An existing target is never touched, so repeat
// invocations leave it byte-identical. Both files missing is fatal: the
// stack cannot run unconfigured.
func (c *Controller) EnsureConfig() error {
	logf := c.logf()
	for _, seed := range c.Manifest.Config {
		target := c.path(seed.Target)
		if _, err := os.Stat(target); err == nil {
			logf("%s exists, leaving untouched\n", seed.Target)
			continue
		}

		sample := c.path(seed.Sample)
		data, err := os.ReadFile(sample)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("no configuration: %s is missing and so is its template %s", seed.Target, seed.Sample)
			}
			return fmt.Errorf("failed to read config template %s: %w", seed.Sample, err)
		}

		// Reject templates that are not parseable env files before they
		// become the stack's live configuration.
		if _, err := godotenv.Unmarshal(string(data)); err != nil {
			return fmt.Errorf("config template %s is not a valid env file: %w", seed.Sample, err)
		}

		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("failed to seed %s: %w", seed.Target, err)
		}
		logf("seeded %s from %s\n", seed.Target, seed.Sample)
	}
	return nil
}

// EnsureExecutable marks the entrypoint scripts executable. Best effort:
// a read-only checkout or an already-correct mode is not a reason to stop
// the bring-up.
func (c *Controller) EnsureExecutable() {
	logf := c.logf()
	for _, script := range c.Manifest.Scripts {
		if err := os.Chmod(c.path(script), 0o755); err != nil {
			logf("note: could not mark %s executable: %v\n", script, err)
		}
	}
}

// EnsureNetwork creates the shared network only when it does not already
// exist. Inspect-hit means another invocation (or operator) provisioned it;
// that is success, not conflict.
func (c *Controller) EnsureNetwork(ctx context.Context) error {
	name := c.Manifest.Network
	if _, err := c.Runner.Output(ctx, "docker", "network", "inspect", name); err == nil {
		c.logf()("network %s already exists\n", name)
		return nil
	}

	c.logf()("creating network %s\n", name)
	if err := c.Runner.Run(ctx, "docker", "network", "create", name); err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}
	return nil
}

// Down stops and removes the selected stack's containers. With reset it
// additionally destroys the stack's named volumes; that path is only
// reachable through the explicit flag, never by default. The compose file
// is loaded and validated before any container operation runs.
func (c *Controller) Down(ctx context.Context, profile Profile, reset bool) error {
	file := c.composeFile(profile)
	project, err := LoadProject(ctx, file, c.Manifest.Project)
	if err != nil {
		return err
	}

	args := []string{"compose", "-f", file, "down"}
	if reset {
		if volumes := VolumeNames(project); len(volumes) > 0 {
			c.logf()("reset will remove volumes: %s\n", strings.Join(volumes, ", "))
		}
		args = append(args, "-v")
	}

	if err := c.Runner.Run(ctx, "docker", args...); err != nil {
		return fmt.Errorf("failed to tear down stack: %w", err)
	}
	return nil
}

// start rebuilds images as needed and runs the stack in the foreground,
// streaming output until the stack exits. Like Down, it refuses to drive
// a compose file that does not load.
func (c *Controller) start(ctx context.Context, profile Profile) error {
	file := c.composeFile(profile)
	if _, err := LoadProject(ctx, file, c.Manifest.Project); err != nil {
		return err
	}

	c.logf()("starting stack (%s profile) from %s\n", profile, file)
	if err := c.Runner.Run(ctx, "docker", "compose", "-f", file, "up", "--build"); err != nil {
		return fmt.Errorf("failed to start stack: %w", err)
	}
	return nil
}

// ReadConfig loads the seeded configuration files as one merged key-value
// view, later seeds overriding earlier ones.
func (c *Controller) ReadConfig() (map[string]string, error) {
	merged := make(map[string]string)
	for _, seed := range c.Manifest.Config {
		env, err := godotenv.Read(c.path(seed.Target))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", seed.Target, err)
		}
		for k, v := range env {
			merged[k] = v
		}
	}
	return merged, nil
}

func (c *Controller) composeFile(profile Profile) string {
	return c.path(c.Manifest.ComposeFile(profile == ProfileDev))
}

func (c *Controller) path(p string) string {
	if c.Dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

func (c *Controller) logf() func(string, ...any) {
	if c.Logf != nil {
		return c.Logf
	}
	return func(format string, args ...any) {
		fmt.Printf(format, args...)
	}
}
