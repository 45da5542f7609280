// Package clone forks a live session into an independent one: it snapshots
// the source's network cache, event log, and page identity, reconstructs the
// page in a fresh tab served deterministically from the snapshot, and replays
// the recorded interactions with compressed timing.
package clone

import (
	"time"

	"github.com/GriffinCanCode/TabForge/internal/domain/netcache"
	"github.com/GriffinCanCode/TabForge/internal/domain/record"
	"github.com/GriffinCanCode/TabForge/internal/domain/session"
)

// Manifest is the point-in-time snapshot a fork is built from. Everything in
// it is deep-copied from the source, so the source can keep mutating freely
// while the fork materializes.
type Manifest struct {
	SourceID  string
	CreatedAt time.Time
	Page      session.PageSnapshot
	Cache     *netcache.Cache
	Events    []record.Event
	Epoch     time.Time
}

// Snapshot freezes the source session into a manifest. Pending pointer
// aggregates are flushed first so the manifest carries the freshest state.
func Snapshot(src *session.Context) *Manifest {
	src.FlushPending()
	return &Manifest{
		SourceID:  src.ID(),
		CreatedAt: time.Now(),
		Page:      src.Snapshot(),
		Cache:     src.Cache().Duplicate(),
		Events:    src.Log().Snapshot(),
		Epoch:     src.Log().Epoch(),
	}
}
