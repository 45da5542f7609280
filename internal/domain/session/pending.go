package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/monitoring"
)

// DefaultPendingTTL is how long a parked session waits for its client.
const DefaultPendingTTL = 60 * time.Second

type pendingEntry struct {
	ctx   *Context
	timer *time.Timer
}

// PendingStore parks sessions that exist but have no attached connection
// yet, chiefly freshly-forked clones waiting for the client to open the
// second socket. An unclaimed session is torn down when its TTL lapses.
//
// Take and expiry race by construction; the map delete is the commit point,
// so exactly one of them wins and the loser sees nothing.
type PendingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*pendingEntry
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewPendingStore builds an empty store with the given TTL.
func NewPendingStore(ttl time.Duration, logger *logging.Logger, metrics *monitoring.Metrics) *PendingStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PendingStore{
		ttl:     ttl,
		entries: make(map[string]*pendingEntry),
		logger:  logger.Named("pending"),
		metrics: metrics,
	}
}

// Add parks a session and arms its expiry timer. Re-adding the same session
// restarts its countdown; a different session parked under the same id
// displaces the earlier one, which is torn down.
func (s *PendingStore) Add(ctx *Context) {
	id := ctx.ID()

	s.mu.Lock()
	if prev, ok := s.entries[id]; ok {
		prev.timer.Stop()
		delete(s.entries, id)
		if prev.ctx != ctx {
			go prev.ctx.Teardown()
		}
	}
	e := &pendingEntry{ctx: ctx}
	e.timer = time.AfterFunc(s.ttl, func() { s.expire(id) })
	s.entries[id] = e
	size := len(s.entries)
	s.mu.Unlock()

	s.updateGauge(size)
	s.logger.Info("session parked",
		zap.String("session_id", id), zap.Duration("ttl", s.ttl))
}

// Take claims a parked session for attachment. Returns false when the id is
// unknown or already expired.
func (s *PendingStore) Take(id string) (*Context, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	e.timer.Stop()
	delete(s.entries, id)
	size := len(s.entries)
	s.mu.Unlock()

	s.updateGauge(size)
	return e.ctx, true
}

func (s *PendingStore) expire(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		// Taken between timer fire and lock acquisition.
		s.mu.Unlock()
		return
	}
	delete(s.entries, id)
	size := len(s.entries)
	s.mu.Unlock()

	s.updateGauge(size)
	s.logger.Info("unclaimed session expired", zap.String("session_id", id))
	e.ctx.Teardown()
}

// Size returns the number of parked sessions.
func (s *PendingStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Drain tears down every parked session concurrently. Used at shutdown.
func (s *PendingStore) Drain() {
	s.mu.Lock()
	drained := make([]*pendingEntry, 0, len(s.entries))
	for id, e := range s.entries {
		e.timer.Stop()
		drained = append(drained, e)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	s.updateGauge(0)

	var g errgroup.Group
	for _, e := range drained {
		e := e
		g.Go(func() error {
			e.ctx.Teardown()
			return nil
		})
	}
	_ = g.Wait()
}

func (s *PendingStore) updateGauge(size int) {
	if s.metrics != nil {
		s.metrics.SessionsPending.Set(float64(size))
	}
}
