package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gbp-politico/backend/config"
	"github.com/gbp-politico/backend/internal/archive"
	"github.com/gbp-politico/backend/internal/eleitores"
	"github.com/gbp-politico/backend/internal/imports"
	"github.com/gbp-politico/backend/internal/uploadhistory"
	"github.com/gbp-politico/backend/pkg/database"
)

var (
	verbose   bool
	empresaID string
)

var rootCmd = &cobra.Command{
	Use:           "gbpctl",
	Short:         "Operator CLI for the GBP backend",
	Long:          "Runs migrations, imports and retires eleitor files, and creates empresas and users against the configured database.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	rootCmd.PersistentFlags().StringVar(&empresaID, "empresa", "", "Empresa ID the command acts on")
}

// app is what a database-backed command gets.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func (a *app) importService(notify imports.Notifier) *imports.Service {
	return imports.NewService(
		uploadhistory.NewRepository(a.pool),
		eleitores.NewRepository(a.pool),
		notify,
		imports.Config{
			BatchSize:   a.cfg.Import.BatchSize,
			PreviewRows: a.cfg.Import.PreviewRows,
			Atomic:      a.cfg.Import.Atomic,
			Strict:      a.cfg.Import.StrictNumbers,
			StaleAfter:  a.cfg.Import.StaleAfter,
		},
		a.logger,
	)
}

func (a *app) archiveService(notify archive.Notifier) *archive.Service {
	history := uploadhistory.NewRepository(a.pool)
	records := eleitores.NewRepository(a.pool)
	return archive.NewService(history, records, eleitores.NewDeletedRepository(a.pool), notify, a.logger)
}

func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		defer logger.Sync()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		pool, err := database.NewPostgresPool(cmd.Context(), cfg.Database.DSN(), database.PoolOptions{
			MaxConns: int32(cfg.Database.MaxConns),
		}, logger)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		return run(cmd, args, &app{cfg: cfg, logger: logger.With(zap.String("command", cmd.CommandPath())), pool: pool})
	}
}

func newLogger(cmd *cobra.Command) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(cmd.ErrOrStderr()), level)
	return zap.New(core)
}

func requireEmpresa() (uuid.UUID, error) {
	if empresaID == "" {
		return uuid.Nil, errors.New("--empresa is required")
	}
	id, err := uuid.Parse(empresaID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --empresa: %w", err)
	}
	return id, nil
}
