// Command apicache-demo serves example endpoints wrapped with the response
// cache, using the in-memory backend and, when configured, Redis.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/api-cache/pkg/config"
	"github.com/Sternrassler/api-cache/pkg/logging"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		redisAddr  string
		logLevel   string
		pretty     bool
	)

	cmd := &cobra.Command{
		Use:          "apicache-demo",
		Short:        "Serve example API endpoints behind the response cache",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Flags win over file and environment
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Server.Addr = addr
			}
			if flags.Changed("redis") {
				cfg.Redis.Addr = redisAddr
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if flags.Changed("pretty") {
				cfg.Log.Pretty = pretty
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, err := logging.ParseLevel(cfg.Log.Level)
			if err != nil {
				return errors.Wrap(err, "log level")
			}
			logger := logging.Setup(logging.Config{
				Level:  level,
				Pretty: cfg.Log.Pretty,
				Output: cmd.ErrOrStderr(),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.Error().Err(err).Msg("Server failed")
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis host:port; empty uses the in-memory backend")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "human-readable console logs")

	return cmd
}
