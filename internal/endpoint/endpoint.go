package endpoint

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/viper"
)

// Endpoint identifies a network dependency the stack must be able to reach
// before a container is allowed to start its long-running process.
type Endpoint struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the dialable host:port form of the endpoint.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	if e.Name == "" {
		return e.Addr()
	}
	return fmt.Sprintf("%s (%s)", e.Name, e.Addr())
}

// Topology selects which dependencies a deployment flavor gates on.
type Topology int

const (
	// TopologyNoDatabase gates only the cache/broker endpoint.
	TopologyNoDatabase Topology = iota
	// TopologyWithDatabase additionally gates the relational database.
	TopologyWithDatabase
)

func (t Topology) String() string {
	switch t {
	case TopologyNoDatabase:
		return "no-database"
	case TopologyWithDatabase:
		return "with-database"
	default:
		return "unknown"
	}
}

// Environment variable keys consumed by the readiness gate. The cache/broker
// pair is always gated; the database pair is gated only when DB_HOST is set.
const (
	EnvCacheHost = "CACHE_HOST"
	EnvCachePort = "CACHE_PORT"
	EnvDBHost    = "DB_HOST"
	EnvDBPort    = "DB_PORT"
)

const (
	defaultCacheHost = "redis"
	defaultCachePort = 6379
	defaultDBPort    = 5432
)

// SetDefaults registers the endpoint defaults on a viper instance. DB_HOST
// deliberately has no default: its absence is what selects the no-database
// topology.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(EnvCacheHost, defaultCacheHost)
	v.SetDefault(EnvCachePort, defaultCachePort)
	v.SetDefault(EnvDBPort, defaultDBPort)
}

// FromConfig resolves the gated endpoint set and the topology it implies
// from the given configuration source.
func FromConfig(v *viper.Viper) ([]Endpoint, Topology, error) {
	cachePort, err := portValue(v, EnvCachePort)
	if err != nil {
		return nil, TopologyNoDatabase, err
	}

	endpoints := []Endpoint{{
		Name: "cache",
		Host: v.GetString(EnvCacheHost),
		Port: cachePort,
	}}

	dbHost := v.GetString(EnvDBHost)
	if dbHost == "" {
		return endpoints, TopologyNoDatabase, nil
	}

	dbPort, err := portValue(v, EnvDBPort)
	if err != nil {
		return nil, TopologyNoDatabase, err
	}

	endpoints = append(endpoints, Endpoint{
		Name: "database",
		Host: dbHost,
		Port: dbPort,
	})
	return endpoints, TopologyWithDatabase, nil
}

// FromEnv resolves endpoints from the process environment.
func FromEnv() ([]Endpoint, Topology, error) {
	v := viper.New()
	v.AutomaticEnv()
	SetDefaults(v)
	return FromConfig(v)
}

// Parse converts a host:port string into an Endpoint.
func Parse(addr string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("invalid port in endpoint %q", addr)
	}
	return Endpoint{Host: host, Port: port}, nil
}

func portValue(v *viper.Viper, key string) (int, error) {
	port := v.GetInt(key)
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid %s value %q", key, v.GetString(key))
	}
	return port, nil
}
