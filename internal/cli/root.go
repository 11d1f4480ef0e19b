package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lazypower/grove/internal/archive"
	"github.com/lazypower/grove/internal/config"
	"github.com/lazypower/grove/internal/store"
	"github.com/lazypower/grove/internal/store/postgres"
	"github.com/lazypower/grove/internal/tree"
)

var (
	cfgFile    string
	treeFlag   int64
	verifyFlag bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "grove",
	Short: "Nested-set tree maintenance",
	Long:  "Grove relocates subtrees in nested-set course trees and archives old courses into per-year categories.",

	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (TOML or YAML)")
	rootCmd.PersistentFlags().Int64Var(&treeFlag, "tree", 0, "tree id (overrides tree.id)")
	rootCmd.PersistentFlags().BoolVar(&verifyFlag, "verify-moves", true, "check tree invariants before committing each move")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(emptyCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if treeFlag > 0 {
		c.Tree.ID = treeFlag
	}
	cfg = c
	logger = newLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return nil
}

// newLogger builds the slog handler named by lc.
func newLogger(lc config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openBackend opens the database named by the loaded config.
func openBackend(ctx context.Context) (tree.Backend, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.TablePrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	default:
		path := cfg.Database.Path
		if path == "" {
			var err error
			path, err = store.DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("resolve db path: %w", err)
			}
		}
		db, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	}
}

func newRelocator(backend tree.Backend) *tree.Relocator {
	return tree.NewRelocator(backend, logger, tree.Options{Verify: verifyFlag})
}

func newArchiver(backend tree.Backend) (*archive.Archiver, error) {
	return archive.New(cfg.Tree, backend, newRelocator(backend), logger)
}
