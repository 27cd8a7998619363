package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/jbovet/docwell/internal/lifecycle"
	"github.com/jbovet/docwell/internal/logging"
)

// Daemon owns one Lifecycle State Machine and the Unix socket server
// answering requests against it. One Daemon instance corresponds to
// one watched corpus: there is no per-project registry here, unlike a
// code-search daemon that juggles many indexed repos behind one
// process.
type Daemon struct {
	cfg     Config
	startup lifecycle.StartupConfig
	logPath string

	machine *lifecycle.Machine
	server  *Server
	pidFile *PIDFile
	started time.Time
}

// NewDaemon validates cfg and wires (but does not start) a Daemon for
// the corpus described by startup.
func NewDaemon(cfg Config, startup lifecycle.StartupConfig) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	server, err := NewServer(cfg.SocketPath)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		cfg:     cfg,
		startup: startup,
		logPath: logging.DefaultLogPath(),
		machine: lifecycle.NewMachine(),
		server:  server,
		pidFile: NewPIDFile(cfg.PIDPath),
	}, nil
}

// Start drives the Lifecycle State Machine through startup and then
// blocks serving requests until ctx is cancelled. The PID file and
// socket are both cleaned up before Start returns.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pidFile.Write(); err != nil {
		return err
	}
	defer func() { _ = d.pidFile.Remove() }()

	d.started = time.Now()

	if err := d.machine.Start(ctx, d.startup); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer func() { _ = d.machine.Stop() }()

	d.server.SetHandler(NewHandler(d.machine, d.logPath))
	return d.server.ListenAndServe(ctx)
}

// Stage reports the daemon's current lifecycle stage.
func (d *Daemon) Stage() lifecycle.Stage {
	return d.machine.Stage()
}
