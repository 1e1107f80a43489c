package procmgr

import (
	"context"
	"fmt"
	"sync"
)

// MockManager is an in-memory Manager for tests and local development
// without a real forwarder binary available. Every call is appended to
// CallLog in the "verb:args" shape used by the control plane's own tests.
type MockManager struct {
	mu sync.Mutex

	CallLog []string

	running bool
	pid     int

	// StartErr, if set, is returned by the next Start call instead of the
	// default success path, then cleared -- mirrors the original's
	// one-shot start_result override.
	StartErr error
}

// NewMockManager returns a stopped MockManager.
func NewMockManager() *MockManager {
	return &MockManager{}
}

// SetRunning forces the mock's running/pid state directly, without going
// through Start -- used to set up preconditions for Stop/IsRunning tests.
func (m *MockManager) SetRunning(running bool, pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = running
	if running {
		m.pid = pid
	} else {
		m.pid = 0
	}
}

func (m *MockManager) Start(ctx context.Context, configPath string, port uint16) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("start:%s:%d", configPath, port))

	if m.StartErr != nil {
		err := m.StartErr
		m.StartErr = nil
		return 0, err
	}

	m.running = true
	m.pid = 12345
	return m.pid, nil
}

func (m *MockManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, "stop")
	m.running = false
	m.pid = 0
	return nil
}

func (m *MockManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MockManager) Pid() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return 0, false
	}
	return m.pid, true
}

// UptimeSeconds returns a fixed 120 seconds when running -- the mock never
// tracks wall-clock time, unlike LocalManager's real elapsed-time computation.
func (m *MockManager) UptimeSeconds() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return 0, false
	}
	return 120, true
}

var _ Manager = (*MockManager)(nil)
