package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/payrecon-ocr/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "payrecon",
	Short: "OCR pipeline for bank payment reconciliation",
	Long:  "Recognizes payment receipts through hosted or local OCR vendors, extracts payment fields, caches results by file hash and drains the asynchronous OCR job queue.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
