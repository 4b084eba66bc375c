package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"atlas-advisor-backend/internal/config"
	"atlas-advisor-backend/internal/logging"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

func main() {
	// Cobra already printed the error.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		if timeoutFlag > 0 {
			cfg.UpstreamTimeout = timeoutFlag
		}
		logger = logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	}
}
