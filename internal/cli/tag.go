package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag <glob-pattern> <tag-path>",
	Short: "Attach a hierarchical tag to every indexed file matching a glob",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndexd()
		if err != nil {
			return err
		}
		defer idx.Close()

		changed, err := idx.Tag(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tagged %d file(s) with %q\n", changed, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagCmd)
}
