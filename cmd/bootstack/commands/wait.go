package commands

import (
	"fmt"
	"time"

	"github.com/openutm/bootstack/internal/endpoint"
	"github.com/openutm/bootstack/internal/gate"
	"github.com/spf13/cobra"
)

var (
	waitTimeout     time.Duration
	waitDialTimeout time.Duration
	waitInterval    time.Duration
	waitParallel    bool
)

var waitCmd = &cobra.Command{
	Use:   "wait [host:port...]",
	Short: "Block until dependency endpoints accept TCP connections",
	Long: `Wait blocks until every given endpoint accepts a TCP connection, or the
timeout elapses. With no arguments the endpoint set is derived from the
environment: the cache/broker endpoint (CACHE_HOST/CACHE_PORT) is always
gated, and the database endpoint (DB_HOST/DB_PORT) is gated only when
DB_HOST is set.

A timeout is fatal: restart policy belongs to the container orchestrator,
not to the gate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints, err := resolveWaitEndpoints(cmd, args)
		if err != nil {
			return err
		}

		g := newGate()
		return g.Wait(cmd.Context(), endpoints)
	},
}

func resolveWaitEndpoints(cmd *cobra.Command, args []string) ([]endpoint.Endpoint, error) {
	if len(args) == 0 {
		endpoints, topology, err := gatedEndpoints()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "gating %s topology (%d endpoints)\n", topology, len(endpoints))
		return endpoints, nil
	}

	endpoints := make([]endpoint.Endpoint, 0, len(args))
	for _, arg := range args {
		ep, err := endpoint.Parse(arg)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

func newGate() *gate.Gate {
	g := gate.New()
	g.Deadline = waitTimeout
	g.DialTimeout = waitDialTimeout
	g.Interval = waitInterval
	g.Parallel = waitParallel
	return g
}

func registerGateFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&waitTimeout, "timeout", gate.DefaultDeadline, "overall deadline across all endpoints")
	cmd.Flags().DurationVar(&waitDialTimeout, "dial-timeout", gate.DefaultDialTimeout, "per-attempt connection timeout")
	cmd.Flags().DurationVar(&waitInterval, "interval", gate.DefaultInterval, "pause between attempts")
	cmd.Flags().BoolVar(&waitParallel, "parallel", false, "probe endpoints concurrently")
}

func init() {
	registerGateFlags(waitCmd)
	rootCmd.AddCommand(waitCmd)
}
