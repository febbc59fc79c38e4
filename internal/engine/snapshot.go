package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/store"
)

// loadSnapshot reads both snapshot keys in full. Called once from New.
func (r *Registry) loadSnapshot() error {
	ctx := context.Background()

	expBlob, err := r.blobs.Get(ctx, store.KeyExperiments)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load experiments snapshot: %w", err)
	}
	if expBlob != nil {
		if err := json.Unmarshal(expBlob, &r.experiments); err != nil {
			return fmt.Errorf("failed to decode experiments snapshot: %w", err)
		}
	}

	asgBlob, err := r.blobs.Get(ctx, store.KeyAssignments)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load assignments snapshot: %w", err)
	}
	if asgBlob != nil {
		if err := json.Unmarshal(asgBlob, &r.assignments); err != nil {
			return fmt.Errorf("failed to decode assignments snapshot: %w", err)
		}
	}

	if r.experiments == nil {
		r.experiments = make(map[string]*experiment.Experiment)
	}
	if r.assignments == nil {
		r.assignments = make(map[string]*experiment.Assignment)
	}
	return nil
}

// persistLocked writes the full snapshot. In-memory state is
// authoritative for the running session, so write failures are logged
// and retried at the next flush rather than surfaced to the caller.
// Callers must hold r.mu.
func (r *Registry) persistLocked() {
	ctx := context.Background()

	expBlob, err := json.Marshal(r.experiments)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to encode experiments snapshot")
		r.dirty = true
		return
	}
	asgBlob, err := json.Marshal(r.assignments)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to encode assignments snapshot")
		r.dirty = true
		return
	}

	if err := r.blobs.Set(ctx, store.KeyExperiments, expBlob); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist experiments snapshot")
		r.dirty = true
		return
	}
	if err := r.blobs.Set(ctx, store.KeyAssignments, asgBlob); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist assignments snapshot")
		r.dirty = true
		return
	}

	r.dirty = false
}

// flushLoop retries pending snapshot writes on an interval.
func (r *Registry) flushLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			if r.dirty {
				r.persistLocked()
			}
			r.mu.Unlock()
		case <-r.stop:
			return
		}
	}
}
