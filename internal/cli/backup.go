package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list, prune and restore hot backups of the index store",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new backup of the live index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveDBPath()
		if err != nil {
			return err
		}
		mgr, err := backupManagerFor(dbPath)
		if err != nil {
			return err
		}
		info, err := mgr.CreateBackup()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) [%s]\n", info.ID, humanize.Bytes(uint64(info.SizeBytes)), info.CorrelationID)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List existing backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveDBPath()
		if err != nil {
			return err
		}
		mgr, err := backupManagerFor(dbPath)
		if err != nil {
			return err
		}
		backups, err := mgr.ListBackups()
		if err != nil {
			return err
		}
		for _, b := range backups {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", b.ID, b.Timestamp.Format("2006-01-02 15:04:05"), humanize.Bytes(uint64(b.SizeBytes)))
		}
		return nil
	},
}

var backupPruneKeep int

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove all but the newest --keep backups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveDBPath()
		if err != nil {
			return err
		}
		mgr, err := backupManagerFor(dbPath)
		if err != nil {
			return err
		}
		res, err := mgr.Prune(backupPruneKeep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "kept %d, removed %d\n", len(res.Kept), len(res.Removed))
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Overwrite the live index with a backup's contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveDBPath()
		if err != nil {
			return err
		}
		mgr, err := backupManagerFor(dbPath)
		if err != nil {
			return err
		}
		if err := mgr.VerifyBackup(args[0]); err != nil {
			return err
		}
		if err := mgr.RestoreFromBackup(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored from %s\n", args[0])
		return nil
	},
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <backup-id>",
	Short: "Run SQLite's integrity check against a backup file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveDBPath()
		if err != nil {
			return err
		}
		mgr, err := backupManagerFor(dbPath)
		if err != nil {
			return err
		}
		if err := mgr.VerifyBackup(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
		return nil
	},
}

func init() {
	backupPruneCmd.Flags().IntVar(&backupPruneKeep, "keep", 7, "number of newest backups to keep")
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupPruneCmd, backupRestoreCmd, backupVerifyCmd)
	rootCmd.AddCommand(backupCmd)
}
