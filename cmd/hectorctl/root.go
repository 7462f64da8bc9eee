// Command hectorctl is a small operator CLI over the hectorgo cluster
// pool: probing hosts, running a one-off operation through the
// failover executor, and reporting pool/host stats. A cobra root
// command holds one subcommand per operation, with configuration
// sourced from flags, a .env file, and HECTORGO_-prefixed environment
// variables via viper.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/outbain/hectorgo/failover"
	"github.com/outbain/hectorgo/logging"
	"github.com/outbain/hectorgo/wire"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "hectorctl",
	Short: "operate a hectorgo connection pool cluster",
	Long: fmt.Sprintf(`hectorctl (v%s)

A command-line client for probing hosts, running operations, and
reporting stats against a hectorgo-pooled cluster.`, version),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the hectorctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hectorctl v%s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(statsCmd)

	cobra.OnInitialize(initConfig)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serializerFor(name string) (wire.Serializer, error) {
	switch name {
	case "json":
		return wire.NewJSONSerializer(), nil
	case "gob":
		return wire.NewGOBSerializer(), nil
	case "binary":
		return wire.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q", name)
	}
}

func policyFor(name string) (failover.Policy, error) {
	switch name {
	case "fail-fast":
		return failover.FailFast, nil
	case "try-one-next":
		return failover.TryOneNext, nil
	case "try-all":
		return failover.TryAll, nil
	case "degrade-consistency":
		return failover.DegradeConsistency(), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

func consistencyFor(name string) (failover.ConsistencyLevel, error) {
	switch name {
	case "one":
		return failover.LevelOne, nil
	case "quorum":
		return failover.LevelQuorum, nil
	case "all":
		return failover.LevelAll, nil
	default:
		return 0, fmt.Errorf("unknown consistency level %q", name)
	}
}

func applyLogLevel(cfg clusterConfig) {
	level := logging.ParseLevel(cfg.logLevel)
	for _, pkg := range []string{"host", "conn", "hostpool", "cluster", "failover", "transport", "cmd"} {
		logging.SetLevel(pkg, level)
	}
}
