package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/focuswatch/internal/config"
	"github.com/andresmejia3/focuswatch/internal/log"
	"github.com/andresmejia3/focuswatch/internal/store"
)

// Options holds shared configuration for the score, replay and probe commands
type Options struct {
	InputPath     string
	NthFrame      int
	NumEngines    int
	CalibrateAt   int
	Room          string
	Student       string
	WorkerTimeout string
	Python        string
	Script        string
	MinConfidence float64
	Save          bool
}

var (
	// DB is the global database connection shared by subcommands
	DB *store.Store
	// dbURL is the connection string
	dbURL string
	// env is the process configuration loaded from .env and the environment
	env config.Env
)

// annotationDB marks commands that need DB opened before they run.
const annotationDB = "needs-db"

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "focuswatch",
	Short:   "Attention scoring from face-mesh landmarks",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if env, err = config.Load(); err != nil {
			return err
		}
		// The flag wins over DATABASE_URL / POSTGRES_*
		if dbURL == "" {
			dbURL = env.DatabaseURL
		}

		log.Debug(log.Fields{"command": cmd.Name(), "redis": env.RedisAddress != ""}, "configuration loaded")

		if cmd.Annotations[annotationDB] == "true" {
			return openDB(cmd.Context())
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			DB.Close()
		}
	},
}

// openDB connects DB once. Commands with optional persistence call it themselves.
func openDB(ctx context.Context) error {
	if DB != nil {
		return nil
	}
	var err error
	// Use the command's context (which will be cancellable) for the connection
	DB, err = store.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: $DATABASE_URL or postgres://localhost:5432/focuswatch)")
}
