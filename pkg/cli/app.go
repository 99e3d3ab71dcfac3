// Package cli assembles the krama command line: running registered stages
// as a pipeline, inspecting run history, and clearing cached state.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"krama/pkg/cache"
	"krama/pkg/history"
	"krama/pkg/krama"
)

// Version is stamped by the build.
var Version = "dev"

// GlobalFlags are shared by every subcommand.
func GlobalFlags(cfg Config) []cli.Flag {
	defaultStore := cfg.Store
	if defaultStore == "" {
		defaultStore = "fs"
	}
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "store",
			Usage: "cache backend: fs, memory, sqlite, postgres, mysql, redis",
			Value: defaultStore,
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "root directory for the fs backend",
			Value: cfg.CacheDir,
		},
		&cli.StringFlag{
			Name:  "dsn",
			Usage: "connection string for database and redis backends",
			Value: cfg.DSN,
		},
		&cli.StringFlag{
			Name:  "history",
			Usage: "path to the sqlite history ledger",
			Value: cfg.HistoryPath,
		},
		&cli.BoolFlag{
			Name:  "plain",
			Usage: "disable styled output",
			Value: cfg.Plain || os.Getenv("KRAMA_PLAIN") != "",
		},
	}
}

// InitApp builds the krama CLI over the given stage registry. The registry
// is supplied by the embedding binary; krama itself ships no stages.
func InitApp(ctx context.Context, registry *krama.Registry) (*cli.Command, error) {
	cfg, err := LoadConfig()
	if err != nil {
		log.Warnf("config: %v", err)
	}

	app := &cli.Command{
		Name:  "krama",
		Usage: "Memoizing pipeline runner",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "krama version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		RunCommandBuilder(registry, cfg),
		StagesCommandBuilder(registry, cfg),
		HistoryCommandBuilder(cfg),
		ClearCommandBuilder(cfg),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app, nil
}

// RunCommandBuilder builds the run subcommand: resolve the named stages
// and execute them as one pipeline run.
func RunCommandBuilder(registry *krama.Registry, cfg Config) *cli.Command {
	flags := append(GlobalFlags(cfg),
		&cli.BoolFlag{
			Name:  "warn-uncacheable",
			Usage: "warn when a call cannot be cached",
			Value: cfg.WarnUncacheable,
		},
		&cli.BoolFlag{
			Name:  "no-history",
			Usage: "skip recording this run in the history ledger",
		},
	)

	return &cli.Command{
		Name:      "run",
		Usage:     "Run the named stages in order",
		ArgsUsage: "stage [stage ...]",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			names := cmd.Args().Slice()
			if len(names) == 0 {
				return fmt.Errorf("no stages named; see 'krama stages'")
			}

			stages, err := registry.Resolve(names...)
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			opts := []krama.Option{
				krama.WithStore(store),
				krama.WithObserver(NewProgress(os.Stdout, cmd.Bool("plain"))),
				krama.WithWarnNotCacheable(cmd.Bool("warn-uncacheable")),
			}

			if !cmd.Bool("no-history") {
				ledger, db, err := openLedger(cmd)
				if err != nil {
					return err
				}
				defer db.Close()
				opts = append(opts, krama.WithLedger(ledger))
			}

			run, err := krama.New(opts...).Run(ctx, stages...)
			if err != nil {
				return err
			}

			log.Debugf("run %s completed in %s", run.ID, run.Duration())
			return nil
		},
	}
}

// StagesCommandBuilder builds the stages subcommand: list registered
// stage names.
func StagesCommandBuilder(registry *krama.Registry, cfg Config) *cli.Command {
	return &cli.Command{
		Name:  "stages",
		Usage: "List registered stages",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			for _, name := range registry.Names() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

// HistoryCommandBuilder builds the history subcommand: show recorded runs.
func HistoryCommandBuilder(cfg Config) *cli.Command {
	flags := append(GlobalFlags(cfg),
		&cli.BoolFlag{
			Name:  "full",
			Usage: "show per-stage detail instead of the summary table",
		},
		&cli.BoolFlag{
			Name:  "clear",
			Usage: "remove all recorded runs",
		},
		&cli.StringFlag{
			Name:  "dump",
			Usage: "write the full record sequence to a file",
		},
	)

	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded pipeline runs",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ledger, db, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if cmd.Bool("clear") {
				return ledger.Clear(ctx)
			}

			if path := cmd.String("dump"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				return ledger.Dump(ctx, f)
			}

			if cmd.Bool("full") {
				return ledger.Dump(ctx, os.Stdout)
			}

			runs, err := ledger.List(ctx)
			if err != nil {
				return err
			}
			RenderHistory(os.Stdout, runs, cmd.Bool("plain"))
			return nil
		},
	}
}

// ClearCommandBuilder builds the clear subcommand: drop cached results
// and, with --all, the history ledger too.
func ClearCommandBuilder(cfg Config) *cli.Command {
	flags := append(GlobalFlags(cfg),
		&cli.BoolFlag{
			Name:  "all",
			Usage: "also clear the history ledger",
		},
	)

	return &cli.Command{
		Name:  "clear",
		Usage: "Remove all cached results",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Clear(ctx); err != nil {
				return err
			}

			if cmd.Bool("all") {
				ledger, db, err := openLedger(cmd)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := ledger.Clear(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// openStore builds the cache backend selected by --store. The returned
// close function is a no-op for backends without a connection.
func openStore(cmd *cli.Command) (cache.Store, func() error, error) {
	noop := func() error { return nil }
	dsn := cmd.String("dsn")

	switch backend := cmd.String("store"); backend {
	case "fs":
		dir := cmd.String("cache-dir")
		if dir == "" {
			dir = cache.DefaultRoot()
		}
		return cache.NewFSStore(dir), noop, nil

	case "memory":
		return cache.NewMemoryStore(), noop, nil

	case "sqlite":
		if dsn == "" {
			dsn = filepath.Join(cache.DefaultRoot(), "cache.db")
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, nil, err
		}
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewSQLStore(db, "", cache.DialectSQLite), db.Close, nil

	case "postgres":
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewSQLStore(db, "", cache.DialectPostgres), db.Close, nil

	case "mysql":
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewSQLStore(db, "", cache.DialectMySQL), db.Close, nil

	case "redis":
		store, err := cache.NewRedisStoreFromURL(dsn, "")
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// openLedger opens the sqlite history ledger at --history, defaulting to
// history.db next to the fs cache root.
func openLedger(cmd *cli.Command) (*history.Ledger, *sql.DB, error) {
	path := cmd.String("history")
	if path == "" {
		path = filepath.Join(cache.DefaultRoot(), "history.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, err
	}
	return history.NewLedger(db, "", history.DialectSQLite), db, nil
}
