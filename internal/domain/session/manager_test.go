package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TabForge/internal/domain/netcache"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
)

func managerTestContext(id string) *Context {
	opts := Options{ID: id, Logger: logging.NewNop()}
	opts.defaults()
	c := build(nil, nil, false, opts)
	c.cache = netcache.New(netcache.DefaultPolicy(), logging.NewNop())
	return c
}

func TestManagerAddGetRemove(t *testing.T) {
	m := NewManager(nil)
	c := managerTestContext("sess_1")

	m.Add(c)
	got, ok := m.Get("sess_1")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, m.Len())

	m.Remove("sess_1")
	_, ok = m.Get("sess_1")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestManagerListOrderedByCreation(t *testing.T) {
	m := NewManager(nil)
	first := managerTestContext("sess_first")
	second := managerTestContext("sess_second")
	second.createdAt = second.createdAt.Add(1)
	m.Add(second)
	m.Add(first)

	infos := m.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "sess_first", infos[0].ID)
	assert.Equal(t, "sess_second", infos[1].ID)
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager(nil)
	a := managerTestContext("sess_a")
	b := managerTestContext("sess_b")
	m.Add(a)
	m.Add(b)

	m.CloseAll()

	assert.Equal(t, 0, m.Len())
	for _, c := range []*Context{a, b} {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		assert.True(t, closed)
	}
}
