// Package procmgr supervises the local CLIProxyAPI child process: start,
// stop, and liveness/uptime reporting, guarded by a single mutex-protected
// state flag.
package procmgr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

const defaultBinaryPath = "cliproxyapi"

// ErrAlreadyRunning is returned by Start when a process is already managed.
// Start is intentionally not idempotent -- the caller must Stop first.
var ErrAlreadyRunning = errors.New("proxy is already running")

// Manager supervises a single forwarder child process.
type Manager interface {
	Start(ctx context.Context, configPath string, port uint16) (pid int, err error)
	Stop(ctx context.Context) error
	IsRunning() bool
	Pid() (pid int, ok bool)
	UptimeSeconds() (uint64, bool)
}

// LocalManager spawns and supervises the forwarder binary via os/exec.
// Stop is idempotent; Start is not -- it errors if already running.
type LocalManager struct {
	mu         sync.Mutex
	cmd        *exec.Cmd
	startedAt  time.Time
	binaryPath string
}

// NewLocalManager returns a LocalManager that spawns binaryPath.
func NewLocalManager(binaryPath string) *LocalManager {
	return &LocalManager{binaryPath: binaryPath}
}

// NewLocalManagerFromEnv reads CLIPROXY_BINARY_PATH, defaulting to "cliproxyapi".
func NewLocalManagerFromEnv() *LocalManager {
	path := os.Getenv("CLIPROXY_BINARY_PATH")
	if path == "" {
		path = defaultBinaryPath
	}
	return NewLocalManager(path)
}

// Start spawns the forwarder with --config configPath. port is accepted for
// interface symmetry with the forwarder's own --port flag conventions but is
// not passed on, since the forwarder reads its listen port from the
// projected config file.
func (m *LocalManager) Start(ctx context.Context, configPath string, port uint16) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd != nil && m.cmd.Process != nil {
		return 0, ErrAlreadyRunning
	}

	cmd := exec.CommandContext(context.WithoutCancel(ctx), m.binaryPath, "--config", configPath)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("procmgr: start %s: %w", m.binaryPath, err)
	}

	m.cmd = cmd
	m.startedAt = time.Now()

	go func() {
		_ = cmd.Wait()
		m.mu.Lock()
		if m.cmd == cmd {
			m.cmd = nil
		}
		m.mu.Unlock()
	}()

	return cmd.Process.Pid, nil
}

// Stop kills the child process if one is running; a no-op otherwise.
func (m *LocalManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cmd := m.cmd
	m.cmd = nil
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("procmgr: stop: %w", err)
	}
	return nil
}

func (m *LocalManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cmd != nil && m.cmd.Process != nil
}

func (m *LocalManager) Pid() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd == nil || m.cmd.Process == nil {
		return 0, false
	}
	return m.cmd.Process.Pid, true
}

func (m *LocalManager) UptimeSeconds() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd == nil || m.cmd.Process == nil {
		return 0, false
	}
	return uint64(time.Since(m.startedAt).Seconds()), true
}

var _ Manager = (*LocalManager)(nil)
