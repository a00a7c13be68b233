package daemon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/config"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
)

const stopGracePeriod = 3 * time.Second

// Manager owns the local daemon sidecar process in usb and simulation
// transport modes. It doubles as the orchestrator's restart hook; in wifi
// mode the daemon runs on the robot and no Manager exists.
type Manager struct {
	command string
	simMode bool
	ring    *logRing
	log     *logging.Logger

	mu       sync.Mutex
	proc     *exec.Cmd
	procDone chan struct{}
}

// NewManager creates a process manager for the configured daemon command.
func NewManager(cfg config.DaemonConfig, log *logging.Logger) *Manager {
	return &Manager{
		command: cfg.Command,
		simMode: cfg.Transport == config.TransportSimulation,
		ring:    newLogRing(cfg.LogLines),
		log:     log.Named("process"),
	}
}

// Start kills any previous daemon, ours or orphaned, and spawns a fresh one.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.killStrays()

	args := []string{"serve"}
	if m.simMode {
		args = append(args, "--sim")
	}

	cmd := exec.Command(m.command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("daemon stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("daemon stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	m.log.Info("daemon started",
		zap.String("command", m.command),
		zap.Bool("sim", m.simMode),
		zap.Int("pid", cmd.Process.Pid),
	)

	done := make(chan struct{})
	m.proc = cmd
	m.procDone = done

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); m.capture(stdout) }()
	go func() { defer wg.Done(); m.capture(stderr) }()

	go func() {
		wg.Wait()
		err := cmd.Wait()
		close(done)
		if err != nil {
			m.log.Warn("daemon exited", zap.Error(err))
		} else {
			m.log.Info("daemon exited")
		}
	}()

	return nil
}

// Stop terminates the daemon if running. Safe to call repeatedly.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Restart implements the orchestrator's restart hook.
func (m *Manager) Restart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.log.Info("restarting daemon process")
	return m.Start()
}

// Running reports whether a daemon process is currently managed.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc == nil {
		return false
	}
	select {
	case <-m.procDone:
		return false
	default:
		return true
	}
}

// Logs returns the captured daemon output, oldest first.
func (m *Manager) Logs() []string {
	return m.ring.Lines()
}

func (m *Manager) stopLocked() {
	if m.proc == nil || m.proc.Process == nil {
		m.proc, m.procDone = nil, nil
		return
	}
	proc, done := m.proc, m.procDone
	m.proc, m.procDone = nil, nil

	_ = proc.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		m.log.Warn("daemon ignored SIGTERM, killing", zap.Int("pid", proc.Process.Pid))
		_ = proc.Process.Kill()
		// Grandchildren can keep the output pipes open past the kill;
		// bound the reap instead of hanging shutdown on them.
		select {
		case <-done:
		case <-time.After(stopGracePeriod):
			m.log.Warn("daemon reap timed out", zap.Int("pid", proc.Process.Pid))
		}
	}
}

// killStrays clears orphaned daemons from a crashed bridge; they hold the
// serial port and would shadow the one we are about to spawn.
func (m *Manager) killStrays() {
	if runtime.GOOS == "windows" {
		return
	}
	name := filepath.Base(m.command)
	if name == "" || name == "." {
		return
	}
	_ = exec.Command("pkill", "-f", name).Run()
}

func (m *Manager) capture(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		line := scanner.Text()
		m.ring.Append(line)
		m.log.Debug("daemon output", zap.String("line", line))
	}
}

// logRing keeps the last max lines of daemon output for the logs endpoint.
type logRing struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newLogRing(max int) *logRing {
	if max <= 0 {
		max = 500
	}
	return &logRing{max: max}
}

func (r *logRing) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
}

func (r *logRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
