package tenant

import (
	"context"
	"sync"
)

// MemoryProvider is an in-memory settings provider for development and tests.
type MemoryProvider struct {
	mu       sync.RWMutex
	settings map[string]Settings
}

// NewMemoryProvider creates a provider seeded with the given settings.
func NewMemoryProvider(seed ...Settings) *MemoryProvider {
	m := &MemoryProvider{settings: make(map[string]Settings)}
	for _, s := range seed {
		m.settings[s.TenantID] = s
	}
	return m
}

// Resolve returns the settings for a tenant, or ErrNoSettings.
func (m *MemoryProvider) Resolve(_ context.Context, tenantID string) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[tenantID]
	if !ok || !s.Configured() {
		return Settings{}, ErrNoSettings
	}
	return s, nil
}

// Put inserts or replaces a tenant's settings.
func (m *MemoryProvider) Put(s Settings) {
	m.mu.Lock()
	m.settings[s.TenantID] = s
	m.mu.Unlock()
}

// Remove deletes a tenant's settings.
func (m *MemoryProvider) Remove(tenantID string) {
	m.mu.Lock()
	delete(m.settings, tenantID)
	m.mu.Unlock()
}
