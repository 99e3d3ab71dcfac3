package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	kcli "krama/pkg/cli"
	"krama/pkg/krama"
)

var ctx = context.Background()

func main() {
	os.Exit(realMain())
}

func realMain() int {
	kcli.InitLogger()

	args := os.Args

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(kcli.Version)
			return 0
		}
	}

	app, err := kcli.InitApp(ctx, buildRegistry())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// buildRegistry assembles the demo stages shipped with the reference
// binary. Embedding programs register their own stages instead.
func buildRegistry() *krama.Registry {
	registry := krama.NewRegistry()

	// ingest defines the callables later stages use. After it completes,
	// word_count and normalize are intercepted and memoized.
	_ = registry.Register(krama.StageFunc("ingest", func(ctx context.Context, ns *krama.Namespace) error {
		if err := ns.DefineFunc("word_count", func(text string) int {
			return len(strings.Fields(text))
		}); err != nil {
			return err
		}
		return ns.DefineFunc("normalize", func(text string) string {
			return strings.ToLower(strings.TrimSpace(text))
		})
	}))

	_ = registry.Register(krama.StageFunc("analyze", func(ctx context.Context, ns *krama.Namespace) error {
		text := "The quick brown fox jumps over the lazy dog"

		normalized, err := ns.Call("normalize", text)
		if err != nil {
			return err
		}
		count, err := ns.Call("word_count", normalized)
		if err != nil {
			return err
		}

		fmt.Printf("%s -> %v words\n", normalized, count)
		return nil
	}))

	return registry
}
