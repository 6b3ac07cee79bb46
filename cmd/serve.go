package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/abhisek/lessonloop/internal/dispatch"
	"github.com/abhisek/lessonloop/internal/observability"
	"github.com/abhisek/lessonloop/internal/server"
	"github.com/abhisek/lessonloop/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		observability.InitMetrics()
		if err := observability.InitTracing(ctx, cfg.Tracing); err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			if err := observability.ShutdownTracing(context.Background()); err != nil {
				logger.Warn("tracing shutdown failed", "error", err)
			}
		}()

		d, err := buildDeps(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		sweeper, err := startSweeper(ctx, d.engine, cfg.Expiry.Schedule)
		if err != nil {
			return err
		}
		if sweeper != nil {
			defer func() { <-sweeper.Stop().Done() }()
		}

		// The pool outlives the listener so in-flight requests can finish
		// during graceful shutdown.
		pool := dispatch.New(cfg.Workers.Shards, cfg.Workers.Queue, logger)
		poolCtx, cancelPool := context.WithCancel(context.Background())
		poolDone := make(chan error, 1)
		go func() { poolDone <- pool.Run(poolCtx) }()

		srv := server.New(d.engine, pool, logger)
		err = srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

		cancelPool()
		if perr := <-poolDone; perr != nil && err == nil {
			err = perr
		}
		logger.Info("server stopped")
		return err
	},
}

// startSweeper schedules ExpireStale on the given cron spec. An empty spec
// disables the sweep and returns nil.
func startSweeper(ctx context.Context, engine *workflow.Engine, spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := engine.ExpireStale(ctx)
		if err != nil {
			logger.Error("expiry sweep failed", "error", err)
			return
		}
		if n > 0 {
			logger.Info("expired stale sessions", "count", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule expiry sweep %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
