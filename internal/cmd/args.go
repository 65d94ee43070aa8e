package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmgilman/atlaspack"
)

var argsCmd = &cobra.Command{
	Use:   "args [input-files...]",
	Short: "Print the builder arguments without running it",
	Long: `Print the arguments 'atlaspack pack' would send to the atlas builder, one
per line, exactly as they would appear in the response file.

Options are resolved the same way as for pack.`,
	Example: `  # Preview the defaults
  atlaspack args

  # Preview a run with overrides
  atlaspack args hero.png -s padding=4 -f atlas.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := resolveOverrides(cmd, args)
		if err != nil {
			return err
		}

		for _, line := range atlaspack.New(atlaspack.Config{}).Arguments(overrides) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(argsCmd)

	addOptionFlags(argsCmd)
}
