package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outbain/hectorgo/cluster"
	"github.com/outbain/hectorgo/transport/tcp"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "report known hosts and per-host pool counters",
	RunE:  runStats,
}

func init() {
	addClusterFlags(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	if err := bindCommandFlags(cmd); err != nil {
		return err
	}
	cfg := loadClusterConfig()
	applyLogLevel(cfg)

	serializer, err := serializerFor(cfg.serializer)
	if err != nil {
		return err
	}
	hosts, err := cfg.buildHosts()
	if err != nil {
		return err
	}

	sink, err := sinkFor(cfg.metrics)
	if err != nil {
		return err
	}
	factory := tcp.NewFactory(serializer)
	cl := cluster.New(factory, hosts, cluster.WithMonitor(sink))
	defer cl.Shutdown()

	// Warm each host's pool with one connection so stats are non-zero
	// even before any real traffic.
	for _, h := range hosts {
		if c, err := cl.BorrowHost(context.Background(), h.Key()); err == nil {
			_ = cl.Release(c)
		}
	}

	down := make(map[string]bool)
	for _, k := range cl.DownHosts() {
		down[k.String()] = true
	}

	for _, k := range cl.KnownHosts() {
		s, ok := cl.Stats(k)
		status := "live"
		if down[k.String()] {
			status = "down"
		}
		if !ok {
			continue
		}
		fmt.Printf("%-24s %-5s active=%d idle=%d blocked=%d exhausted=%t\n",
			k, status, s.NumActive, s.NumIdle, s.NumBlocked, s.IsExhausted)
	}

	agg := cl.AggregateStats()
	fmt.Printf("\ntotal (live pools)      active=%d idle=%d blocked=%d exhausted=%d/%d\n",
		agg.NumActive, agg.NumIdle, agg.NumBlocked, agg.NumExhausted, len(agg.PoolNames))
	if len(agg.ExhaustedHosts) > 0 {
		fmt.Printf("exhausted: %v\n", agg.ExhaustedHosts)
	}
	return nil
}
