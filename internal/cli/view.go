package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Manage saved searches (\"smart folders\") and run them",
}

var viewSaveCmd = &cobra.Command{
	Use:   "save <name> <query>",
	Short: "Save a named query for later reuse",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndexd()
		if err != nil {
			return err
		}
		defer idx.Close()

		if err := idx.SaveView(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved view %q\n", args[0])
		return nil
	},
}

var viewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved views",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndexd()
		if err != nil {
			return err
		}
		defer idx.Close()

		views, err := idx.ListViews()
		if err != nil {
			return err
		}
		for _, v := range views {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", v.Name, v.Query)
		}
		return nil
	},
}

var viewExecCmd = &cobra.Command{
	Use:   "exec <name>",
	Short: "Run a saved view's query and print the matching paths",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndexd()
		if err != nil {
			return err
		}
		defer idx.Close()

		query, err := idx.ViewQuery(args[0])
		if err != nil {
			return err
		}

		paths, err := idx.Search(query)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "no matches")
			return nil
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	viewCmd.AddCommand(viewSaveCmd, viewListCmd, viewExecCmd)
	rootCmd.AddCommand(viewCmd)
}
