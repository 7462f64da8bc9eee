package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outbain/hectorgo/cluster"
	"github.com/outbain/hectorgo/conn"
	"github.com/outbain/hectorgo/failover"
	"github.com/outbain/hectorgo/transport/tcp"
)

var execCmd = &cobra.Command{
	Use:   "exec [payload]",
	Short: "run a single request through the failover executor",
	Args:  cobra.ExactArgs(1),
	RunE:  runExec,
}

func init() {
	addClusterFlags(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	if err := bindCommandFlags(cmd); err != nil {
		return err
	}
	cfg := loadClusterConfig()
	applyLogLevel(cfg)

	serializer, err := serializerFor(cfg.serializer)
	if err != nil {
		return err
	}
	policy, err := policyFor(cfg.policy)
	if err != nil {
		return err
	}
	consistency, err := consistencyFor(cfg.consistency)
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

	payload := []byte(args[0])
	var response []byte
	op := failover.OperationFunc(func(ctx context.Context, c *conn.Connection, level failover.ConsistencyLevel) error {
		resp, err := c.Channel().Send(ctx, payload)
		if err != nil {
			return err
		}
		response = resp
		return nil
	})

	ctx := context.Background()
	if err := cl.Execute(ctx, op, policy, consistency); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	fmt.Printf("%s\n", response)
	return nil
}
