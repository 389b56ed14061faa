package manifest

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// DefaultPath is where the stack manifest is looked up when no override is
// given on the command line or through BOOTSTACK_MANIFEST.
const DefaultPath = "bootstack.toml"

// Manifest describes one deployable stack: the compose files that define it,
// the commands its containers boot with, and the host resources the
// lifecycle controller provisions around it.
type Manifest struct {
	// Project is the compose project name.
	Project string `toml:"project"`

	// Network is the shared docker network the stack attaches to.
	Network string `toml:"network"`

	Compose Compose      `toml:"compose"`
	Config  []ConfigSeed `toml:"config"`

	// Scripts are entrypoint scripts marked executable before bring-up.
	// Chmod failures are tolerated.
	Scripts []string `toml:"scripts"`

	// Marker, when set, is a shared-volume path written by server mode
	// after migrations complete and waited on by worker mode before it
	// starts consuming tasks. Empty disables the barrier on both sides.
	Marker string `toml:"marker"`

	Migrate []string `toml:"migrate"`
	Server  Server   `toml:"server"`
	Worker  Worker   `toml:"worker"`
}

// Compose names the stack definition file per compose profile.
type Compose struct {
	Default string `toml:"default"`
	Dev     string `toml:"dev"`
}

// ConfigSeed is a sample→target pair for idempotent configuration seeding:
// the target is created from the sample only when absent, never overwritten.
type ConfigSeed struct {
	Sample string `toml:"sample"`
	Target string `toml:"target"`
}

// Server configures the HTTP-server run mode.
type Server struct {
	Command []string `toml:"command"`

	// PreServe is an optional step run before migration, e.g. static-asset
	// collection. Empty means skipped.
	PreServe []string `toml:"pre_serve"`

	Port        int `toml:"port"`
	Concurrency int `toml:"concurrency"`
}

// Worker configures the background-worker run mode.
type Worker struct {
	Command  []string `toml:"command"`
	LogLevel string   `toml:"loglevel"`
}

// Default returns the built-in manifest matching the stock stack layout.
func Default() Manifest {
	return Manifest{
		Project: "appstack",
		Network: "appstack-net",
		Compose: Compose{
			Default: "docker-compose.yaml",
			Dev:     "docker-compose.dev.yaml",
		},
		Config: []ConfigSeed{
			{Sample: ".env.sample", Target: ".env"},
		},
		Scripts: []string{"entrypoint.sh", "entrypoint-worker.sh"},
		Migrate: []string{"python", "manage.py", "migrate"},
		Server: Server{
			Command:     []string{"gunicorn", "wsgi:application"},
			Port:        8000,
			Concurrency: 3,
		},
		Worker: Worker{
			Command:  []string{"celery", "-A", "app", "worker"},
			LogLevel: "info",
		},
	}
}

// Load reads the manifest at path, filling unset fields from the defaults.
// A missing file yields the defaults outright; a malformed file is an error.
func Load(path string) (Manifest, error) {
	m := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return Manifest{}, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	fillDefaults(&m)
	if err := validate(m); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return m, nil
}

// ServerArgv is the full argv for the HTTP server: the configured command
// plus the fixed bind address and concurrency.
func (m Manifest) ServerArgv() []string {
	argv := append([]string{}, m.Server.Command...)
	return append(argv,
		"--bind", "0.0.0.0:"+strconv.Itoa(m.Server.Port),
		"--workers", strconv.Itoa(m.Server.Concurrency),
	)
}

// WorkerArgv is the full argv for the background worker.
func (m Manifest) WorkerArgv() []string {
	argv := append([]string{}, m.Worker.Command...)
	return append(argv, "--loglevel", m.Worker.LogLevel)
}

// ComposeFile returns the stack definition for the named profile.
func (m Manifest) ComposeFile(dev bool) string {
	if dev {
		return m.Compose.Dev
	}
	return m.Compose.Default
}

func fillDefaults(m *Manifest) {
	def := Default()
	if m.Project == "" {
		m.Project = def.Project
	}
	if m.Network == "" {
		m.Network = def.Network
	}
	if m.Compose.Default == "" {
		m.Compose.Default = def.Compose.Default
	}
	if m.Compose.Dev == "" {
		m.Compose.Dev = def.Compose.Dev
	}
	if len(m.Config) == 0 {
		m.Config = def.Config
	}
	if len(m.Migrate) == 0 {
		m.Migrate = def.Migrate
	}
	if len(m.Server.Command) == 0 {
		m.Server.Command = def.Server.Command
	}
	if m.Server.Port == 0 {
		m.Server.Port = def.Server.Port
	}
	if m.Server.Concurrency == 0 {
		m.Server.Concurrency = def.Server.Concurrency
	}
	if len(m.Worker.Command) == 0 {
		m.Worker.Command = def.Worker.Command
	}
	if m.Worker.LogLevel == "" {
		m.Worker.LogLevel = def.Worker.LogLevel
	}
}

func validate(m Manifest) error {
	if m.Server.Port < 1 || m.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", m.Server.Port)
	}
	if m.Server.Concurrency < 1 {
		return fmt.Errorf("server concurrency must be positive")
	}
	for _, seed := range m.Config {
		if seed.Sample == "" || seed.Target == "" {
			return fmt.Errorf("config seed requires both sample and target")
		}
	}
	return nil
}
