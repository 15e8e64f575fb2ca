package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/submerge/internal/config"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Aggregate proxy subscriptions into one Clash configuration",
		Long: `submerge fetches a list of subscription URLs, decodes ss/vmess/trojan/vless/hysteria2
links, base64 bundles and full YAML configurations, and merges the nodes into a
single Clash-compatible document with selector, load-balance, url-test and
per-label groups.

A source list has one URL per line. A "# label" line names the URL right below it.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "config file (default $XDG_CONFIG_HOME/submerge/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "log level: trace/debug/info/warn/error (env LOG_LEVEL)")

	cmd.AddCommand(NewGenerateCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHealthcheckCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the --config file (or the default path) and applies the
// log level: --log-level, then LOG_LEVEL, then the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// newLogger writes text logs to w at the configured level.
func newLogger(w io.Writer, cfg *config.Config) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Log.Level, config.ErrInvalidLogLevel)
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l, nil
}
