package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/lexgen/cache"
	"github.com/teranos/lexgen/config"
	"github.com/teranos/lexgen/typegen"
	"github.com/teranos/lexgen/watch"
)

var (
	generateOutput     string
	generatePrefix     string
	generateTarget     string
	generateNoBuiltins bool
	generateNoCache    bool
	generateWatch      bool
)

// GenerateCmd represents the generate command
var GenerateCmd = &cobra.Command{
	Use:   "generate <lexicon-dir>",
	Short: "Generate typed models from lexicon schemas",
	Long: `Generate typed data models from a directory of atproto lexicon
JSON documents.

The directory is scanned recursively; files without a "lexicon" version
marker are skipped. Cross-document references resolve against every
loaded document plus the embedded com.atproto builtins. Output is
deterministic: the same inputs always produce byte-identical files.

Results are cached per input digest, so re-running over unchanged
schemas restores the previous output without regenerating.

Examples:
  lexgen generate ./lexicons -o ./models
  lexgen generate ./lexicons --prefix app.bsky --target typescript
  lexgen generate ./lexicons --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	GenerateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Output directory (default: ./generated)")
	GenerateCmd.Flags().StringVarP(&generatePrefix, "prefix", "p", "", "Only generate documents whose NSID matches this prefix")
	GenerateCmd.Flags().StringVarP(&generateTarget, "target", "t", "", "Output language (python, typescript)")
	GenerateCmd.Flags().BoolVar(&generateNoBuiltins, "no-builtins", false, "Disable the embedded com.atproto lexicons")
	GenerateCmd.Flags().BoolVar(&generateNoCache, "no-cache", false, "Always regenerate, bypassing the output cache")
	GenerateCmd.Flags().BoolVarP(&generateWatch, "watch", "w", false, "Keep running and regenerate on file changes")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts := typegen.Options{
		InputDir:   args[0],
		OutputDir:  firstNonEmpty(generateOutput, cfg.Generate.Output),
		Prefix:     firstNonEmpty(generatePrefix, cfg.Generate.Prefix),
		Target:     firstNonEmpty(generateTarget, cfg.Generate.Target),
		NoBuiltins: generateNoBuiltins || cfg.Generate.NoBuiltins,
	}

	useCache := cfg.Cache.Enabled && !generateNoCache
	var gate *cache.Gate
	if useCache {
		gate, err = cache.New(cfg.Cache.Dir)
		if err != nil {
			return err
		}
	}

	run := func(ctx context.Context) error {
		return generateOnce(ctx, opts, gate)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		return err
	}

	if generateWatch {
		watcher, err := watch.New(opts.InputDir, run)
		if err != nil {
			return err
		}
		pterm.Info.Printf("Watching %s for changes (ctrl-c to stop)\n", opts.InputDir)
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}

func generateOnce(ctx context.Context, opts typegen.Options, gate *cache.Gate) error {
	var (
		paths []string
		hit   bool
		err   error
	)
	if gate != nil {
		paths, hit, err = cache.Generate(ctx, opts, gate)
	} else {
		paths, err = typegen.Generate(ctx, opts)
	}
	if err != nil {
		return err
	}

	switch {
	case len(paths) == 0:
		pterm.Warning.Printf("No documents matched prefix %q; nothing generated\n", opts.Prefix)
	case hit:
		pterm.Success.Printf("Restored %s files from cache\n", pterm.Green(fmt.Sprintf("%d", len(paths))))
	default:
		pterm.Success.Printf("Generated %s files in %s\n", pterm.Green(fmt.Sprintf("%d", len(paths))), opts.OutputDir)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
