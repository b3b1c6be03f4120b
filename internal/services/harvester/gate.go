package harvester

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/services/state"
)

// SyncGate decides whether a harvest cycle may start now. The busy flag is a
// non-reentrant in-memory gate scoped to one worker instance, not a
// distributed lock; the last-sync timestamp is persisted so restarts honor
// the sync period.
type SyncGate struct {
	state     *state.Service
	component string
	period    time.Duration
	logger    arbor.ILogger

	mu   sync.Mutex
	busy bool

	// now is swapped in tests
	now func() time.Time
}

// NewSyncGate creates a gate for the named component
func NewSyncGate(stateService *state.Service, component string, period time.Duration, logger arbor.ILogger) *SyncGate {
	return &SyncGate{
		state:     stateService,
		component: component,
		period:    period,
		logger:    logger,
		now:       time.Now,
	}
}

// ShouldSkip reports whether the cycle must be skipped: another cycle is in
// flight, or the sync period has not elapsed. When it returns false the gate
// has already persisted the new last-sync timestamp and marked itself busy;
// the caller must Release once the cycle ends, on every path.
//
// The timestamp write happens before any network fetch so a crash mid-cycle
// costs at most one missed window instead of a re-trigger storm on restart.
func (g *SyncGate) ShouldSkip(ctx context.Context) bool {
	g.mu.Lock()
	if g.busy {
		g.mu.Unlock()
		g.logger.Debug().Str("component", g.component).Msg("Cycle already in flight, skipping")
		return true
	}
	g.mu.Unlock()

	now := g.now()

	lastSync, err := g.state.GetLastSync(ctx, g.component)
	if err != nil {
		g.logger.Warn().Err(err).Str("component", g.component).Msg("Failed to read last-sync timestamp, skipping cycle")
		return true
	}

	if now.Before(lastSync.Add(g.period)) {
		g.logger.Debug().
			Str("component", g.component).
			Str("last_sync", lastSync.Format(time.RFC3339)).
			Dur("period", g.period).
			Msg("Sync period not elapsed, skipping")
		return true
	}

	if err := g.state.SetLastSync(ctx, g.component, now); err != nil {
		g.logger.Warn().Err(err).Str("component", g.component).Msg("Failed to persist last-sync timestamp, skipping cycle")
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		// Lost the race to another caller between the read and here
		return true
	}
	g.busy = true
	return false
}

// Release clears the busy flag. Called unconditionally at the end of a cycle,
// including every error path; a leaked flag would wedge the worker for good.
func (g *SyncGate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.busy = false
}

// Busy reports whether a cycle is currently in flight
func (g *SyncGate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
