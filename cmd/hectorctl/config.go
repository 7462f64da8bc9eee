package main

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/outbain/hectorgo/host"
)

// Wrap is the column width help text for persistent flags is wrapped at.
const Wrap = 60

// WrapString greedily packs text's words into lines no wider than Wrap,
// breaking only between words.
func WrapString(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	start, lineLen := 0, 0

	for i, word := range words {
		add := len(word)
		if lineLen > 0 {
			add++
		}
		if lineLen+add > Wrap && i > start {
			lines = append(lines, strings.Join(words[start:i], " "))
			start, lineLen, add = i, 0, len(word)
		}
		lineLen += add
	}
	lines = append(lines, strings.Join(words[start:], " "))

	return strings.Join(lines, "\n")
}

// initConfig loads .env files and wires viper to read HECTORGO_-prefixed
// environment variables.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("hectorgo")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindCommandFlags binds cmd's flags to viper so HECTORGO_* environment
// variables and flags resolve through the same GetXxx calls.
func bindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// addClusterFlags registers the flags shared by every subcommand that
// talks to a cluster.
func addClusterFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("hosts", "127.0.0.1:9170", WrapString("Comma-separated address:port list of cluster hosts"))
	cmd.PersistentFlags().String("serializer", "binary", WrapString("Wire serializer to use (json, gob, binary)"))
	cmd.PersistentFlags().Duration("socket-timeout", host.DefaultSocketTimeout, WrapString("Per-RPC socket timeout"))
	cmd.PersistentFlags().Duration("borrow-timeout", host.DefaultBorrowTimeout, WrapString("How long borrow blocks on an exhausted pool"))
	cmd.PersistentFlags().Int("max-pool-size", host.DefaultMaxPoolSize, WrapString("Per-host connection pool cap"))
	cmd.PersistentFlags().Int("max-idle", host.DefaultMaxIdle, WrapString("Per-host idle connection shrink target"))
	cmd.PersistentFlags().String("policy", "try-one-next", WrapString("Failover policy: fail-fast, try-one-next, try-all, degrade-consistency"))
	cmd.PersistentFlags().String("consistency", "quorum", WrapString("Consistency level: one, quorum, all"))
	cmd.PersistentFlags().String("log-level", "info", WrapString("Log level: debug, info, warning, error"))
	cmd.PersistentFlags().String("metrics", "none", WrapString("Counter sink for recoverable errors: none, victoriametrics, go-metrics"))
}

// clusterConfig is read from viper after flags are bound.
type clusterConfig struct {
	hosts         []string
	serializer    string
	socketTimeout time.Duration
	borrowTimeout time.Duration
	maxPoolSize   int
	maxIdle       int
	policy        string
	consistency   string
	logLevel      string
	metrics       string
}

func loadClusterConfig() clusterConfig {
	return clusterConfig{
		hosts:         strings.Split(viper.GetString("hosts"), ","),
		serializer:    viper.GetString("serializer"),
		socketTimeout: viper.GetDuration("socket-timeout"),
		borrowTimeout: viper.GetDuration("borrow-timeout"),
		maxPoolSize:   viper.GetInt("max-pool-size"),
		maxIdle:       viper.GetInt("max-idle"),
		policy:        viper.GetString("policy"),
		consistency:   viper.GetString("consistency"),
		logLevel:      viper.GetString("log-level"),
		metrics:       viper.GetString("metrics"),
	}
}

func (cfg clusterConfig) buildHosts() ([]host.Host, error) {
	hosts := make([]host.Host, 0, len(cfg.hosts))
	for _, addr := range cfg.hosts {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		h, err := host.Parse(addr,
			host.WithSocketTimeout(cfg.socketTimeout),
			host.WithBorrowTimeout(cfg.borrowTimeout),
			host.WithMaxPoolSize(cfg.maxPoolSize),
			host.WithMaxIdle(cfg.maxIdle),
		)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}
