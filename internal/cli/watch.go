package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marlinhq/indexd/internal/config"
	"github.com/marlinhq/indexd/internal/control"
	"github.com/marlinhq/indexd/internal/ferr"
	"github.com/marlinhq/indexd/internal/store"
	"github.com/marlinhq/indexd/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Control the background filesystem watcher daemon",
}

var watchStartCmd = &cobra.Command{
	Use:   "start <root>",
	Short: "Start the watch daemon for a directory, if not already running",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return ferr.Wrap(ferr.Config, err, "resolve root %s", args[0])
		}
		dbPath, err := resolveDBPath()
		if err != nil {
			return err
		}
		exe, err := os.Executable()
		if err != nil {
			return ferr.Wrap(ferr.Other, err, "resolve own executable path")
		}
		port := control.DerivePort(dbPath)
		daemonArgs := []string{
			"watch-daemon",
			control.StoreArg, dbPath,
			control.RootArg, root,
			control.PortArg, strconv.Itoa(port),
		}
		if err := control.Start(dbPath, exe, daemonArgs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "watch daemon for %s listening on port %d\n", root, port)
		return nil
	},
}

var watchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the running watch daemon's status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveDBPath()
		if err != nil {
			return err
		}
		dto, err := control.Status(dbPath)
		if err != nil {
			return err
		}
		body, _ := json.MarshalIndent(dto, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	},
}

var watchStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running watch daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveDBPath()
		if err != nil {
			return err
		}
		if err := control.Stop(dbPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "watch daemon stopped")
		return nil
	},
}

// watchDaemonCmd is the hidden subcommand control.Start's spawned child
// process re-execs into: it binds the control listener, attaches a
// FileWatcher to the store, publishes its own control file, and serves
// the one-request-per-connection status/stop protocol until "stop" is
// received or it is signaled.
var watchDaemonCmd = &cobra.Command{
	Use:    "watch-daemon",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runWatchDaemon,
}

var (
	watchDaemonStore string
	watchDaemonRoot  string
	watchDaemonPort  int
)

func init() {
	watchCmd.AddCommand(watchStartCmd, watchStatusCmd, watchStopCmd)
	rootCmd.AddCommand(watchCmd)

	watchDaemonCmd.Flags().StringVar(&watchDaemonStore, "store", "", "index store path")
	watchDaemonCmd.Flags().StringVar(&watchDaemonRoot, "root", "", "directory to watch")
	watchDaemonCmd.Flags().IntVar(&watchDaemonPort, "control-port", 0, "control port to listen on")
	rootCmd.AddCommand(watchDaemonCmd)
}

func runWatchDaemon(cmd *cobra.Command, args []string) error {
	if watchDaemonStore == "" || watchDaemonRoot == "" || watchDaemonPort == 0 {
		return ferr.New(ferr.Config, "watch-daemon requires --store, --root and --control-port")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(watchDaemonStore)
	if err != nil {
		return err
	}
	defer st.Close()

	pcfg, err := config.LoadProjectConfig(watchDaemonRoot)
	if err != nil {
		return err
	}
	wcfg := watcher.Config{
		DebounceMs:     pcfg.Watcher.DebounceMs,
		BatchSize:      pcfg.Watcher.BatchSize,
		MaxQueueSize:   pcfg.Watcher.MaxQueueSize,
		DrainTimeoutMs: pcfg.Watcher.DrainTimeoutMs,
	}
	fw, err := watcher.New(watchDaemonRoot, wcfg)
	if err != nil {
		return err
	}
	fw.AttachStore(st)
	if err := fw.Start(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", watchDaemonPort))
	if err != nil {
		return ferr.Wrap(ferr.Watch, err, "bind control port %d", watchDaemonPort)
	}
	defer ln.Close()

	if err := control.PublishSelf(watchDaemonStore, watchDaemonPort); err != nil {
		return err
	}
	defer control.Remove(control.FilePath(watchDaemonStore))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- control.Serve(ln, func() control.StatusDTO {
			s := fw.Status()
			return control.StatusDTO{
				State:           s.State,
				EventsProcessed: s.EventsProcessed,
				QueueSize:       s.QueueSize,
				UptimeSecs:      s.UptimeSecs(),
				WatchedPaths:    s.WatchedPaths,
			}
		}, fw.Stop)
	}()

	select {
	case <-ctx.Done():
		_ = fw.Stop()
		ln.Close()
		return nil
	case err := <-serveErr:
		return err
	}
}
