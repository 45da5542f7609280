package session

import (
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/TabForge/internal/infrastructure/monitoring"
)

// Manager tracks sessions with an attached connection.
type Manager struct {
	mu      sync.RWMutex
	live    map[string]*Context
	metrics *monitoring.Metrics
}

// NewManager builds an empty manager.
func NewManager(metrics *monitoring.Metrics) *Manager {
	return &Manager{
		live:    make(map[string]*Context),
		metrics: metrics,
	}
}

// Add registers a session as live.
func (m *Manager) Add(ctx *Context) {
	m.mu.Lock()
	m.live[ctx.ID()] = ctx
	size := len(m.live)
	m.mu.Unlock()
	m.updateGauge(size)
}

// Remove unregisters a session. The caller owns teardown.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.live, id)
	size := len(m.live)
	m.mu.Unlock()
	m.updateGauge(size)
}

// Get returns the live session with the given id.
func (m *Manager) Get(id string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.live[id]
	return c, ok
}

// List describes every live session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.live))
	for _, c := range m.live {
		infos = append(infos, c.Describe())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Len returns the live session count.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// CloseAll tears down every live session concurrently. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	closing := make([]*Context, 0, len(m.live))
	for id, c := range m.live {
		closing = append(closing, c)
		delete(m.live, id)
	}
	m.mu.Unlock()

	m.updateGauge(0)

	var g errgroup.Group
	for _, c := range closing {
		c := c
		g.Go(func() error {
			c.Teardown()
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) updateGauge(size int) {
	if m.metrics != nil {
		m.metrics.SessionsActive.Set(float64(size))
	}
}
