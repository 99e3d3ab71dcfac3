package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"

	"krama/pkg/cache"
)

// withFlags parses args against the shared global flags and hands the
// populated command to fn, mirroring how subcommand actions see it.
func withFlags(t *testing.T, cfg Config, args []string, fn func(cmd *cli.Command) error) error {
	t.Helper()
	cmd := &cli.Command{
		Name:  "krama",
		Flags: GlobalFlags(cfg),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return fn(cmd)
		},
	}
	return cmd.Run(context.Background(), append([]string{"krama"}, args...))
}

func TestOpenStoreBackendSelection(t *testing.T) {
	err := withFlags(t, Config{}, []string{"--store", "memory"}, func(cmd *cli.Command) error {
		store, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()
		if _, ok := store.(*cache.MemoryStore); !ok {
			t.Errorf("memory backend built %T", store)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	err = withFlags(t, Config{}, []string{"--store", "fs", "--cache-dir", dir}, func(cmd *cli.Command) error {
		store, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()
		if _, ok := store.(*cache.FSStore); !ok {
			t.Errorf("fs backend built %T", store)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	dsn := filepath.Join(t.TempDir(), "cache.db")
	err = withFlags(t, Config{}, []string{"--store", "sqlite", "--dsn", dsn}, func(cmd *cli.Command) error {
		store, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()
		if _, ok := store.(*cache.SQLStore); !ok {
			t.Errorf("sqlite backend built %T", store)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	err := withFlags(t, Config{}, []string{"--store", "tape"}, func(cmd *cli.Command) error {
		_, _, err := openStore(cmd)
		return err
	})
	if err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestOpenStoreDefaultComesFromConfig(t *testing.T) {
	err := withFlags(t, Config{Store: "memory"}, nil, func(cmd *cli.Command) error {
		store, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()
		if _, ok := store.(*cache.MemoryStore); !ok {
			t.Errorf("config default ignored, built %T", store)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPlainFlagFromEnv(t *testing.T) {
	t.Setenv("KRAMA_PLAIN", "1")
	err := withFlags(t, Config{}, nil, func(cmd *cli.Command) error {
		if !cmd.Bool("plain") {
			t.Error("KRAMA_PLAIN did not default --plain on")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
