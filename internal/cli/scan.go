package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Recursively index file metadata under one or more paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndexd()
		if err != nil {
			return err
		}
		defer idx.Close()

		n, err := idx.Scan(args)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d file(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
