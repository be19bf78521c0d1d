package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pyx-backend/internal/config"
	"pyx-backend/pkg/logger"
)

// Manager owns one Assistant per visitor. Assistants are built on first
// use and evicted after the session TTL, archiving the live conversation
// and persisting first.
type Manager struct {
	deps   Deps
	config *config.SessionConfig

	mu         sync.RWMutex
	assistants map[string]*Assistant

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewManager(deps Deps) *Manager {
	deps.withDefaults()
	m := &Manager{
		deps:       deps,
		config:     &deps.Config.Session,
		assistants: make(map[string]*Assistant),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if m.config.TTL > 0 && m.config.CleanupInterval > 0 {
		go m.cleanupOldSessions()
	} else {
		close(m.done)
	}
	return m
}

// Get returns the visitor's assistant, restoring it from storage on first
// access.
func (m *Manager) Get(ctx context.Context, visitorID string) (*Assistant, error) {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return nil, &ValidationError{Field: "visitor_id", Message: "is required"}
	}

	m.mu.RLock()
	a, ok := m.assistants[visitorID]
	m.mu.RUnlock()
	if ok {
		return a, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assistants[visitorID]; ok {
		return a, nil
	}
	a = NewAssistant(ctx, visitorID, m.deps)
	m.assistants[visitorID] = a
	m.deps.Metrics.SetActiveVisitors(len(m.assistants))
	logger.Infof("Assistant created for visitor %s", visitorID)
	return a, nil
}

// Active is the number of visitors currently held in memory.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assistants)
}

func (m *Manager) cleanupOldSessions() {
	defer close(m.done)
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.EvictIdle(context.Background(), time.Now().Add(-m.config.TTL))
		case <-m.stop:
			return
		}
	}
}

// EvictIdle archives, persists and drops every assistant idle since before
// cutoff. It returns the number evicted.
func (m *Manager) EvictIdle(ctx context.Context, cutoff time.Time) int {
	m.mu.Lock()
	expired := make([]*Assistant, 0)
	for id, a := range m.assistants {
		if a.LastActive().Before(cutoff) {
			expired = append(expired, a)
			delete(m.assistants, id)
		}
	}
	m.deps.Metrics.SetActiveVisitors(len(m.assistants))
	m.mu.Unlock()

	for _, a := range expired {
		if err := a.Persist(ctx); err != nil {
			logger.Errorf("Failed to persist expired visitor %s: %v", a.VisitorID(), err)
			continue
		}
		logger.Infof("Cleaned up expired visitor: %s", a.VisitorID())
	}
	return len(expired)
}

// Shutdown stops the cleanup loop, then archives and persists every live
// assistant.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done

	m.mu.RLock()
	all := make([]*Assistant, 0, len(m.assistants))
	for _, a := range m.assistants {
		all = append(all, a)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, a := range all {
		if err := a.Persist(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Forget drops the visitor from memory and deletes every stored document.
func (m *Manager) Forget(ctx context.Context, visitorID string) error {
	m.mu.Lock()
	delete(m.assistants, visitorID)
	m.deps.Metrics.SetActiveVisitors(len(m.assistants))
	m.mu.Unlock()

	if m.deps.Store == nil {
		return nil
	}
	if err := m.deps.Store.DeleteVisitor(ctx, visitorID); err != nil {
		return fmt.Errorf("forget visitor %s: %w", visitorID, err)
	}
	logger.Infof("Deleted all data for visitor %s", visitorID)
	return nil
}

// StoredVisitors lists visitors with persisted documents.
func (m *Manager) StoredVisitors(ctx context.Context) ([]string, error) {
	if m.deps.Store == nil {
		return nil, nil
	}
	return m.deps.Store.Visitors(ctx)
}
