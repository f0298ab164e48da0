package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/payrecon-ocr/internal/monitoring"
	"github.com/sells-group/payrecon-ocr/internal/worker"
)

var (
	servePort           int
	serveWorkerInterval time.Duration
	serveNoChecker      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OCR HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initService(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newServer(env, cfg.Server.MaxUploadMB).routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		// Graceful shutdown
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		interval := serveWorkerInterval
		if interval == 0 {
			interval = time.Duration(cfg.Worker.IntervalSecs) * time.Second
		}
		if interval > 0 {
			sched := worker.NewScheduler(env.Worker, interval, worker.Options{Limit: cfg.Worker.Limit})
			g.Go(func() error {
				sched.Run(gctx)
				return nil
			})
		}

		if !serveNoChecker {
			checker := monitoring.NewChecker(env.Collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().DurationVar(&serveWorkerInterval, "worker-interval", 0, "run the job worker on this interval alongside the server (default from config, 0 disables)")
	serveCmd.Flags().BoolVar(&serveNoChecker, "no-checker", false, "disable the background queue health checker")
	rootCmd.AddCommand(serveCmd)
}
