package capture

import (
	"errors"
	"sync"
)

var (
	// ErrSessionActive means the owner already has a live capture session.
	ErrSessionActive = errors.New("capture session already active")
	// ErrNoSession means no capture session exists for the owner.
	ErrNoSession = errors.New("no active capture session")
)

// Devices builds the per-session hardware handles. Each session gets its
// own camera so the exclusive-ownership rule holds per acquisition.
type Devices interface {
	Locator() Locator
	Camera() Camera
	Gate() FaceGate
}

// Manager enforces one capture session per owner and owns their teardown.
type Manager struct {
	devices  Devices
	geocoder Geocoder

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager handing out sessions built on the given
// device factory. geocoder may be nil; sessions then show coordinates only.
func NewManager(devices Devices, geocoder Geocoder) *Manager {
	return &Manager{
		devices:  devices,
		geocoder: geocoder,
		sessions: make(map[string]*Session),
	}
}

// Acquire creates the owner's session. Only one session may be live per
// owner; the previous one must be released first.
func (m *Manager) Acquire(owner string) (*Session, error) {
	if owner == "" {
		return nil, errors.New("owner required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[owner]; ok {
		return nil, ErrSessionActive
	}
	sess := newSession(owner, m.devices.Locator(), m.devices.Camera(), m.devices.Gate(), m.geocoder)
	m.sessions[owner] = sess
	return sess, nil
}

// Get returns the owner's live session.
func (m *Manager) Get(owner string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[owner]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// Release tears down and forgets the owner's session. Releasing a
// non-existent session is a no-op.
func (m *Manager) Release(owner string) {
	m.mu.Lock()
	sess, ok := m.sessions[owner]
	delete(m.sessions, owner)
	m.mu.Unlock()
	if ok {
		sess.Release()
	}
}
