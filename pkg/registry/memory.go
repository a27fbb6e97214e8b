package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-memory Registry. Loaders replace the whole snapshot at
// once so readers never observe a partially applied update.
type Memory struct {
	mu   sync.RWMutex
	apps map[string]App
}

// Ensure Memory implements Registry at compile time.
var _ Registry = (*Memory)(nil)

// NewMemory creates a registry holding the given apps. It panics on invalid
// input; use Replace to load untrusted data.
func NewMemory(apps ...App) *Memory {
	m := &Memory{apps: make(map[string]App)}
	if err := m.Replace(apps); err != nil {
		panic(err)
	}
	return m
}

// App returns a copy of the registered app.
func (m *Memory) App(appID string) (*App, bool) {
	if appID == "" {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	app, ok := m.apps[appID]
	if !ok {
		return nil, false
	}
	return &app, true
}

// Replace validates apps and swaps them in as the new snapshot. On error
// the previous snapshot is kept.
func (m *Memory) Replace(apps []App) error {
	next := make(map[string]App, len(apps))
	for i := range apps {
		if err := apps[i].Validate(); err != nil {
			return fmt.Errorf("apps[%d]: %w", i, err)
		}
		if _, dup := next[apps[i].ID]; dup {
			return fmt.Errorf("apps[%d]: duplicate app_id %q", i, apps[i].ID)
		}
		next[apps[i].ID] = apps[i]
	}

	m.mu.Lock()
	m.apps = next
	m.mu.Unlock()
	return nil
}

// IDs returns the registered app ids in sorted order.
func (m *Memory) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.apps))
	for id := range m.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered apps.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.apps)
}
