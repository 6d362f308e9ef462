package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claimpoint/internal"
	"claimpoint/internal/backend"
	"claimpoint/internal/config"
	"claimpoint/internal/logging"
	"claimpoint/internal/storage"
	"claimpoint/internal/templates"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "claimpoint",
	Short:         "Map claim spreadsheets to canonical fields, keep mapping templates and submit claim batches",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.AddCommand(
		sheetColumnsCmd(),
		templateMapCmd(),
		templateListCmd(),
		templateLastCmd(),
		templateShowCmd(),
		policySeedCmd(),
		intakeSubmitCmd(),
		exportClaimsCmd(),
	)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	must(rootCmd.ExecuteContext(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// openRecordStore picks the backend named by BACKEND. The returned func releases it.
func openRecordStore(ctx context.Context) (internal.RecordStore, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		if err := cfg.Require("DATABASE_URL", cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		store, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendProxy:
		if err := cfg.Require("PROXY_BASE_URL", cfg.ProxyBaseURL); err != nil {
			return nil, nil, err
		}
		return backend.NewClient(cfg, logger), func() {}, nil
	default:
		db, err := storage.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	}
}

// openTemplateStore wires the template store to the record backend and to the local state
// database holding the last-saved pointer.
func openTemplateStore(ctx context.Context) (*templates.Store, internal.RecordStore, func(), error) {
	records, closeRecords, err := openRecordStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	state, err := storage.Open(cfg.StatePath)
	if err != nil {
		closeRecords()
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = state.Close()
		closeRecords()
	}

	policy, err := templates.ParseSavePolicy(cfg.TemplateSavePolicy)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	store, err := templates.NewStore(records, state, policy, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return store, records, cleanup, nil
}
