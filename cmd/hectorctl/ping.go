package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/outbain/hectorgo/transport/tcp"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "probe every configured host and report whether it answers",
	RunE:  runPing,
}

func init() {
	addClusterFlags(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
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

	factory := tcp.NewFactory(serializer)
	for _, h := range hosts {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.socketTimeout)
		start := time.Now()
		ch, err := factory.Dial(ctx, h)
		if err == nil {
			err = ch.Probe(ctx)
			_ = ch.Close()
		}
		cancel()

		if err != nil {
			fmt.Printf("%-24s DOWN  (%v)\n", h.Key(), err)
			continue
		}
		fmt.Printf("%-24s LIVE  %v\n", h.Key(), time.Since(start))
	}
	return nil
}
