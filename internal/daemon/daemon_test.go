package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbovet/docwell/internal/embedder"
	"github.com/jbovet/docwell/internal/lifecycle"
	"github.com/jbovet/docwell/internal/protocol"
)

// fakeSpawner runs the embedder handshake and an echo embed handler
// entirely in-process, the same technique internal/lifecycle's own
// startup tests use.
func fakeSpawner(t *testing.T) embedder.Spawner {
	t.Helper()
	return func(ctx context.Context) (*exec.Cmd, io.WriteCloser, io.ReadCloser, error) {
		stdinR, stdinW := io.Pipe()
		stdoutR, stdoutW := io.Pipe()

		go func() {
			scanner := bufio.NewScanner(stdinR)
			scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

			readyLine, _ := json.Marshal(protocol.Response{ID: "ready"})
			stdoutW.Write(append(readyLine, '\n'))

			for scanner.Scan() {
				var req protocol.Request
				if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
					continue
				}
				if req.Method == "shutdown" {
					continue
				}
				var params embedder.EmbedRequest
				_ = protocol.Decode(req.Params, &params)
				vectors := make([][]float32, len(params.Texts))
				for i := range params.Texts {
					vec := make([]float32, embedder.Dimensions)
					vec[0] = 1.0
					vectors[i] = vec
				}
				result, _ := protocol.Encode(embedder.EmbedResult{Vectors: vectors})
				line, _ := json.Marshal(protocol.Response{ID: req.ID, Result: result})
				stdoutW.Write(append(line, '\n'))
			}
			stdoutW.Close()
		}()

		return nil, stdinW, stdoutR, nil
	}
}

// daemonTestConfig creates a test configuration with unique paths.
func daemonTestConfig(t *testing.T) Config {
	t.Helper()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	socketPath := filepath.Join("/tmp", fmt.Sprintf("docwell-daemon-test-%s.sock", suffix))
	pidPath := filepath.Join("/tmp", fmt.Sprintf("docwell-daemon-test-%s.pid", suffix))

	t.Cleanup(func() {
		os.Remove(socketPath)
		os.Remove(pidPath)
	})

	return Config{
		SocketPath:          socketPath,
		PIDPath:             pidPath,
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: 2 * time.Second,
	}
}

func testStartupConfig(t *testing.T) lifecycle.StartupConfig {
	t.Helper()
	return lifecycle.StartupConfig{
		DataDir:            t.TempDir(),
		WatchedFolders:     []string{t.TempDir()},
		EmbeddingBatchSize: 8,
		Spawner:            fakeSpawner(t),
		VectorDimensions:   embedder.Dimensions,
	}
}

func TestNewDaemon(t *testing.T) {
	cfg := daemonTestConfig(t)

	d, err := NewDaemon(cfg, testStartupConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestNewDaemon_InvalidConfig(t *testing.T) {
	cfg := Config{
		SocketPath: "",
		PIDPath:    "/tmp/test.pid",
		Timeout:    5 * time.Second,
	}

	_, err := NewDaemon(cfg, lifecycle.StartupConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestDaemon_StartStop(t *testing.T) {
	cfg := daemonTestConfig(t)

	d, err := NewDaemon(cfg, testStartupConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && d.Stage() != lifecycle.StageReady {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, lifecycle.StageReady, d.Stage())

	pf := NewPIDFile(cfg.PIDPath)
	assert.True(t, pf.IsRunning(), "daemon should be running")

	_, err = os.Stat(cfg.SocketPath)
	require.NoError(t, err, "socket should exist")

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemon_ClientCanSearchAfterReady(t *testing.T) {
	cfg := daemonTestConfig(t)
	startup := testStartupConfig(t)

	require.NoError(t, os.WriteFile(filepath.Join(startup.WatchedFolders[0], "note.txt"), []byte("hello world"), 0o644))

	d, err := NewDaemon(cfg, startup)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = d.Start(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && d.Stage() != lifecycle.StageReady {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, lifecycle.StageReady, d.Stage())

	client := NewClient(cfg)
	assert.True(t, client.IsRunning())
	require.NoError(t, client.Init(ctx))

	stats, err := client.DBStats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.IndexedFiles, 0)
}

func TestDaemon_StaleSocketCleaned(t *testing.T) {
	cfg := daemonTestConfig(t)

	err := os.WriteFile(cfg.SocketPath, []byte("stale"), 0o644)
	require.NoError(t, err)

	d, err := NewDaemon(cfg, testStartupConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = d.Start(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && d.Stage() != lifecycle.StageReady {
		time.Sleep(10 * time.Millisecond)
	}

	client := NewClient(cfg)
	assert.True(t, client.IsRunning())
}

func TestDaemon_StalePIDCleaned(t *testing.T) {
	cfg := daemonTestConfig(t)

	err := os.WriteFile(cfg.PIDPath, []byte("4194304"), 0o644)
	require.NoError(t, err)

	d, err := NewDaemon(cfg, testStartupConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = d.Start(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && d.Stage() != lifecycle.StageReady {
		time.Sleep(10 * time.Millisecond)
	}

	pf := NewPIDFile(cfg.PIDPath)
	assert.True(t, pf.IsRunning())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}
