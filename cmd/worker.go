package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/payrecon-ocr/internal/worker"
)

var (
	workerLimit    int
	workerDryRun   bool
	workerInterval time.Duration
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued OCR jobs",
	Long:  "Runs one pass over queued OCR jobs. With --interval, keeps running passes until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initService(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit := workerLimit
		if limit == 0 {
			limit = cfg.Worker.Limit
		}
		opts := worker.Options{Limit: limit, DryRun: workerDryRun}

		if workerInterval > 0 {
			worker.NewScheduler(env.Worker, workerInterval, opts).Run(ctx)
			return nil
		}

		processed, err := env.Worker.Run(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "processed %d jobs (dry run: %t)\n", processed, workerDryRun)
		return nil
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerLimit, "limit", 0, "max jobs per pass (default from config)")
	workerCmd.Flags().BoolVar(&workerDryRun, "dry-run", false, "count queued jobs without calling endpoints or updating them")
	workerCmd.Flags().DurationVar(&workerInterval, "interval", 0, "repeat passes on this interval until interrupted")
	rootCmd.AddCommand(workerCmd)
}
