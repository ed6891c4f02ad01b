package control

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControlFilePathAndPort(t *testing.T) {
	store := "/home/user/.local/share/indexd/index_abc.db"
	require.Equal(t, "/home/user/.local/share/indexd/index_abc.watch.json", FilePath(store))
	require.Equal(t, "/home/user/.local/share/indexd/index_abc.watch.lock", LockPath(store))

	port := DerivePort(store)
	require.GreaterOrEqual(t, port, portWindowBase)
	require.Less(t, port, portWindowBase+portWindowSize)
	require.Equal(t, port, DerivePort(store)) // deterministic
}

func TestWriteReadRemoveControlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.watch.json")
	require.NoError(t, Write(path, Info{PID: 123, Port: 48000}))

	info, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, 123, info.PID)
	require.Equal(t, 48000, info.Port)

	require.NoError(t, Remove(path))
	_, err = Read(path)
	require.Error(t, err)
	require.NoError(t, Remove(path)) // idempotent
}

func TestServeStatusAndStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	stopped := make(chan struct{})
	go func() {
		_ = Serve(ln, func() StatusDTO {
			return StatusDTO{State: "watching", EventsProcessed: 7, QueueSize: 0, UptimeSecs: 1.5}
		}, func() error {
			close(stopped)
			return nil
		})
	}()

	dto, err := RequestStatus(port)
	require.NoError(t, err)
	require.Equal(t, "watching", dto.State)
	require.Equal(t, uint64(7), dto.EventsProcessed)

	reply, err := Request(port, "stop")
	require.NoError(t, err)
	require.Equal(t, "ok", reply)
	<-stopped
}

func TestProcessAliveForCurrentProcess(t *testing.T) {
	require.True(t, processAlive(os.Getpid()))
	require.False(t, processAlive(-1))
}
