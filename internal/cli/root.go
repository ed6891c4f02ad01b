// Package cli wires indexd's cobra subcommands: scan, tag, search, watch
// (start/status/stop), backup (create/list/prune/restore/verify) and view
// (save/list/exec), plus the hidden watch-daemon subcommand the control
// package's Start spawns as a detached child process.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "indexd",
	Short: "A filesystem metadata indexer: scan, tag, search and watch",
	Long: `indexd indexes a directory tree's file metadata into a local
SQLite store, lets you attach hierarchical tags and key/value attributes,
search over the result with FTS5, and keep the index live via a
filesystem watcher daemon.`,
}

// Execute runs the root command, exiting non-zero on any fatal error per
// spec §7's user-visible error behavior.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
