package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/eventsage/internal/app"
	"github.com/dshills/eventsage/internal/config"
	"github.com/dshills/eventsage/pkg/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "eventsage",
	Short: "Question answering over university events",
	Long: `eventsage answers natural-language questions about a catalog of
university events using structured lookups, fuzzy name matching and
vector search, then phrases the answer with a language model.

Configuration is read from defaults, then the YAML file given by --config
or EVENTSAGE_CONFIG, then EVENTSAGE_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// stdout is reserved for command output and the MCP protocol
		return logger.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("eventsage: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

// loadConfig loads configuration and applies the configured log level
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// openService loads configuration and builds the service. Callers must
// Close the returned service.
func openService(cmd *cobra.Command, opts ...app.Option) (*app.Service, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	opts = append([]app.Option{app.WithLogger(logger.Get())}, opts...)
	svc, err := app.New(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, nil
}

func closeService(cmd *cobra.Command, svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.Get().Error(cmd.Context(), "failed to close service", logger.Error(err))
	}
}
