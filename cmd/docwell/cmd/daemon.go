package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbovet/docwell/internal/daemon"
	"github.com/jbovet/docwell/internal/logging"
	"github.com/jbovet/docwell/internal/output"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background indexing and search daemon",
		Long: `The daemon watches configured folders, keeps the embedding model
loaded, and answers search requests over a Unix socket.

Commands:
  start   Start the daemon (runs in background by default)
  stop    Stop the running daemon
  status  Show daemon status and health

Run 'docwell daemon start' in a folder already configured with
'docwell init', or pass folders explicitly.`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start [folder...]",
		Short: "Start the background daemon",
		Long: `Start the daemon for the corpus made up of the given watched
folders (or the current directory's corpus, if none are given).

Use --foreground for debugging or to see logs in real-time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStart(cmd.Context(), cmd, args, foreground)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop [folder...]",
		Short: "Stop the running daemon",
		Long:  `Stop the running daemon. Sends SIGTERM for graceful shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStop(cmd, args)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [folder...]",
		Short: "Show daemon status",
		Long:  `Show whether the daemon is running and a database summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStatus(cmd.Context(), cmd, args, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDaemonStart(ctx context.Context, cmd *cobra.Command, folders []string, foreground bool) error {
	out := output.New(cmd.OutOrStdout())

	cfg, corpusDir, err := resolveCorpus(folders)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w (run 'docwell init' first)", err)
	}
	if err := cfg.Save(corpusDir); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	dcfg := daemonConfig(corpusDir)

	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	startup, err := startupConfig(cfg, corpusDir)
	if err != nil {
		return err
	}

	if foreground {
		logCfg := logging.DefaultConfig()
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
		if logger, cleanup, err := logging.Setup(logCfg); err == nil {
			slog.SetDefault(logger)
			defer cleanup()
		}

		out.Status("", "Starting daemon in foreground...")
		out.Status("", fmt.Sprintf("Corpus: %s", corpusDir))
		out.Status("", fmt.Sprintf("Socket: %s", dcfg.SocketPath))
		out.Status("", fmt.Sprintf("Logs: %s", logging.DefaultLogPath()))
		out.Status("", "Press Ctrl+C to stop")
		out.Newline()

		slog.Info("daemon starting in foreground mode",
			slog.String("corpus", corpusDir),
			slog.String("socket", dcfg.SocketPath))

		d, err := daemon.NewDaemon(dcfg, startup)
		if err != nil {
			slog.Error("failed to create daemon", slog.String("error", err.Error()))
			return fmt.Errorf("failed to create daemon: %w", err)
		}

		return d.Start(ctx)
	}

	out.Status("", "Starting daemon in background...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	bgArgs := append([]string{"daemon", "start", "--foreground"}, cfg.WatchedFolders...)
	bgCmd := exec.Command(execPath, bgArgs...)
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 200; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Success(fmt.Sprintf("Daemon started (pid: %d)", bgCmd.Process.Pid))
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout")
}

func runDaemonStop(cmd *cobra.Command, folders []string) error {
	out := output.New(cmd.OutOrStdout())

	_, corpusDir, err := resolveCorpus(folders)
	if err != nil {
		return err
	}
	dcfg := daemonConfig(corpusDir)

	pidFile := daemon.NewPIDFile(dcfg.PIDPath)

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Success(fmt.Sprintf("Daemon stopped (was pid: %d)", pid))
			return nil
		}
	}

	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}

	out.Success("Daemon killed")
	return nil
}

// daemonStatusReport is the --json shape for 'docwell daemon status'.
type daemonStatusReport struct {
	Running      bool   `json:"running"`
	Corpus       string `json:"corpus,omitempty"`
	Socket       string `json:"socket,omitempty"`
	IndexedFiles int    `json:"indexed_files,omitempty"`
	TotalChunks  int    `json:"total_chunks,omitempty"`
	ModelReady   bool   `json:"model_ready,omitempty"`
}

func runDaemonStatus(ctx context.Context, cmd *cobra.Command, folders []string, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())

	_, corpusDir, err := resolveCorpus(folders)
	if err != nil {
		return err
	}
	dcfg := daemonConfig(corpusDir)
	client := daemon.NewClient(dcfg)

	if !client.IsRunning() {
		if jsonOutput {
			return encodeJSON(cmd, daemonStatusReport{Running: false, Corpus: corpusDir})
		}
		out.Status("", "Daemon is not running")
		out.Status("", "Run 'docwell daemon start' to start it")
		return nil
	}

	stats, statsErr := client.DBStats(ctx)
	model, modelErr := client.ModelCheck(ctx)
	if statsErr != nil && modelErr != nil {
		return fmt.Errorf("failed to get status: %w", statsErr)
	}

	report := daemonStatusReport{
		Running:      true,
		Corpus:       corpusDir,
		Socket:       dcfg.SocketPath,
		IndexedFiles: stats.IndexedFiles,
		TotalChunks:  stats.TotalChunks,
		ModelReady:   model.Ready,
	}

	if jsonOutput {
		return encodeJSON(cmd, report)
	}

	out.Status("", "Daemon is running")
	out.Status("", fmt.Sprintf("  Corpus:        %s", corpusDir))
	out.Status("", fmt.Sprintf("  Socket:        %s", dcfg.SocketPath))
	out.Status("", fmt.Sprintf("  Indexed files: %d", stats.IndexedFiles))
	out.Status("", fmt.Sprintf("  Total chunks:  %d", stats.TotalChunks))
	out.Status("", fmt.Sprintf("  Model ready:   %t", model.Ready))

	return nil
}

func encodeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
