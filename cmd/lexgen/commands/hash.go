package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/lexgen/config"
	"github.com/teranos/lexgen/typegen"
)

var hashPrefix string

// HashCmd represents the hash command
var HashCmd = &cobra.Command{
	Use:   "hash <lexicon-dir>",
	Short: "Print the content digest of a lexicon directory",
	Long: `Compute the digest that keys the output cache for a lexicon
directory: a hash over the generator version, the prefix filter, and
every .json file's relative path and raw bytes, in sorted path order.

Two directory trees with the same digest produce identical output.

Examples:
  lexgen hash ./lexicons
  lexgen hash ./lexicons --prefix app.bsky`,
	Args: cobra.ExactArgs(1),
	RunE: runHash,
}

func init() {
	HashCmd.Flags().StringVarP(&hashPrefix, "prefix", "p", "", "Prefix filter included in the digest")
}

func runHash(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	digest, err := typegen.HashLexicons(args[0], firstNonEmpty(hashPrefix, cfg.Generate.Prefix))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), digest)
	return nil
}
