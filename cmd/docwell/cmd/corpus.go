package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jbovet/docwell/internal/config"
	"github.com/jbovet/docwell/internal/daemon"
	"github.com/jbovet/docwell/internal/embedder"
	"github.com/jbovet/docwell/internal/lifecycle"
)

// resolveCorpus figures out which corpus a CLI invocation targets:
// explicit folder arguments resolve and persist a config.json of
// their own; no arguments falls back to whatever corpus the current
// directory already belongs to.
func resolveCorpus(folders []string) (*config.Config, string, error) {
	if len(folders) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
		folders = []string{cwd}
	}

	abs := make([]string, len(folders))
	for i, f := range folders {
		a, err := filepath.Abs(f)
		if err != nil {
			return nil, "", fmt.Errorf("resolving %q: %w", f, err)
		}
		abs[i] = a
	}

	corpusDir, err := config.CorpusDir(abs)
	if err != nil {
		return nil, "", err
	}

	if config.Exists(corpusDir) {
		cfg, err := config.Load(corpusDir)
		return cfg, corpusDir, err
	}

	cfg := config.New()
	cfg.WatchedFolders = abs
	return cfg, corpusDir, nil
}

// daemonConfig derives the daemon's socket/PID paths from its
// corpus directory, so each watched folder set gets its own daemon
// instance instead of one global socket.
func daemonConfig(corpusDir string) daemon.Config {
	return daemon.Config{
		SocketPath:          filepath.Join(corpusDir, "daemon.sock"),
		PIDPath:             filepath.Join(corpusDir, "daemon.pid"),
		Timeout:             daemon.DefaultConfig().Timeout,
		ShutdownGracePeriod: daemon.DefaultConfig().ShutdownGracePeriod,
	}
}

// startupConfig builds the Lifecycle State Machine's StartupConfig
// from a loaded corpus configuration, wiring the real embedder child
// binary (docwell-embedder, found alongside this executable) as its
// Spawner.
func startupConfig(cfg *config.Config, corpusDir string) (lifecycle.StartupConfig, error) {
	embedderPath, err := findEmbedderBinary()
	if err != nil {
		return lifecycle.StartupConfig{}, err
	}

	modelCacheDir := filepath.Join(corpusDir, "models")

	return lifecycle.StartupConfig{
		DataDir:            corpusDir,
		WatchedFolders:     cfg.WatchedFolders,
		ExcludePatterns:    cfg.Settings.ExcludePatterns,
		EmbeddingBatchSize: cfg.Settings.EmbeddingBatchSize,
		CPUThrottle:        string(cfg.Settings.CPUThrottle),
		Spawner:            embedder.ExecSpawner(embedderPath, modelCacheDir),
		VectorDimensions:   embedder.Dimensions,
	}, nil
}

// findEmbedderBinary locates the docwell-embedder sidecar, expected
// to sit next to the running docwell binary (the layout a Homebrew
// formula or release tarball both produce).
func findEmbedderBinary() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolving own executable path: %w", err)
	}
	if real, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = real
	}

	candidate := filepath.Join(filepath.Dir(execPath), "docwell-embedder")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}

	if path, err := exec.LookPath("docwell-embedder"); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("docwell-embedder binary not found next to %s or in PATH", execPath)
}
