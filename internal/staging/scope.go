package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const scopePrefix = "job-"

// Manager hands out job scopes under a root directory.
type Manager struct {
	root string

	mu     sync.Mutex
	active map[string]*Scope
}

// NewManager returns a Manager rooted at root.
func NewManager(root string) *Manager {
	return &Manager{root: strings.TrimSpace(root), active: make(map[string]*Scope)}
}

// Root reports the staging directory.
func (m *Manager) Root() string {
	return m.root
}

// Scope is one job's scratch directory.
type Scope struct {
	manager *Manager
	jobID   string
	dir     string
	once    sync.Once
	err     error
}

// Acquire creates the scope directory for jobID. A job holds at most one
// scope at a time.
func (m *Manager) Acquire(jobID string) (*Scope, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || jobID == "." || jobID == ".." {
		return nil, fmt.Errorf("staging: invalid job id %q", jobID)
	}
	if m.root == "" {
		return nil, errors.New("staging: root directory not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.active[jobID]; exists {
		return nil, fmt.Errorf("staging: job %s already holds a scope", jobID)
	}
	dir := filepath.Join(m.root, scopePrefix+jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("staging: create %s: %w", dir, err)
	}
	scope := &Scope{manager: m, jobID: jobID, dir: dir}
	m.active[jobID] = scope
	return scope, nil
}

// Active reports how many scopes are held.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) isActive(dirName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[strings.TrimPrefix(dirName, scopePrefix)]
	return ok
}

func (m *Manager) forget(jobID string) {
	m.mu.Lock()
	delete(m.active, jobID)
	m.mu.Unlock()
}

// Dir returns the scope directory.
func (s *Scope) Dir() string {
	return s.dir
}

// Path returns name inside the scope directory.
func (s *Scope) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Release removes the scope directory. Repeated calls return the first
// result.
func (s *Scope) Release() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		if err := os.RemoveAll(s.dir); err != nil {
			s.err = fmt.Errorf("staging: remove %s: %w", s.dir, err)
		}
		s.manager.forget(s.jobID)
	})
	return s.err
}
