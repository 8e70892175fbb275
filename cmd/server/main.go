package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/pasal-api/internal/app"
	"github.com/iliyamo/pasal-api/internal/config"
	"github.com/iliyamo/pasal-api/internal/database"
	"github.com/iliyamo/pasal-api/internal/logging"
	"github.com/iliyamo/pasal-api/internal/queue"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and builds the process logger.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	log := logging.New(logging.Config{Env: cfg.Env, Level: cfg.LogLevel, ServiceName: "pasal"})
	return cfg, log, nil
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pasal",
		Short:         "Multi-tenant storefront API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(serveCmd(), migrateCmd(), consumeAuditCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			addr := ":" + cfg.Port
			log.Info("listening",
				zap.String("addr", addr),
				zap.String("env", cfg.Env),
				zap.String("storage", cfg.Storage),
				zap.String("base_domain", cfg.BaseDomain))

			errc := make(chan error, 1)
			go func() { errc <- a.Echo.Start(addr) }()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Info("shutting down")
			return a.Echo.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the MySQL tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if cfg.Storage != "mysql" {
				return fmt.Errorf("migrate needs STORAGE=mysql, got %q", cfg.Storage)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			db, err := database.Open(ctx, database.Options{
				User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
			})
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			log.Info("schema up to date", zap.String("db", cfg.DBName))
			return nil
		},
	}
}

func consumeAuditCmd() *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "consume-audit",
		Short: "Append published events to the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = queue.StartAuditConsumer(ctx, queue.AuditConfig{
				URL:     cfg.RabbitMQURL,
				Queue:   cfg.EventsQueue,
				LogPath: logPath,
			}, log)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&logPath, "log-file", "logs/audit.log", "audit log destination")
	return cmd
}
