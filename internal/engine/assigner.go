package engine

import (
	"strings"

	"github.com/splitkit/splitkit/internal/bus"
	"github.com/splitkit/splitkit/internal/experiment"
)

// AssignmentEvent is the bus payload for a new assignment.
type AssignmentEvent struct {
	ExperimentID string `json:"experimentId"`
	UserID       string `json:"userId"`
	VariantID    string `json:"variantId"`
	Path         string `json:"path"`
}

// Assign buckets a user into a variant. It returns nil (and no error)
// when the experiment is not active or the path is not targeted. An
// already-bucketed user always gets their existing assignment back;
// re-drawing after a user is bucketed would corrupt the counters.
func (r *Registry) Assign(experimentID, userID, currentPath string) (*experiment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[experimentID]
	if !ok {
		return nil, &experiment.NotFoundError{ID: experimentID}
	}
	if exp.Status != experiment.StatusActive {
		return nil, nil
	}

	key := experiment.AssignmentKey(experimentID, userID)
	if existing, ok := r.assignments[key]; ok {
		return cloneAssignment(existing), nil
	}

	if !pageMatches(exp.TargetPages, currentPath) {
		return nil, nil
	}

	// The random draw is reached exactly once per user per experiment;
	// stickiness comes from the existing-assignment check above, not
	// from hashing the user id.
	variant := exp.Control()
	if r.rng.Intn(100) <= exp.TrafficAllocation {
		variant = exp.Challenger()
	}

	a := &experiment.Assignment{
		ExperimentID: experimentID,
		UserID:       userID,
		VariantID:    variant.ID,
		AssignedAt:   r.now(),
	}
	r.assignments[key] = a

	if variant.ID == exp.Challenger().ID {
		exp.Results.VariantB.Visitors++
	} else {
		exp.Results.VariantA.Visitors++
	}
	refreshResults(exp)
	exp.UpdatedAt = r.now()

	r.persistLocked()
	r.bus.Publish(bus.EventAssignment, AssignmentEvent{
		ExperimentID: experimentID,
		UserID:       userID,
		VariantID:    variant.ID,
		Path:         currentPath,
	})

	return cloneAssignment(a), nil
}

// Assignment returns the existing assignment for (experiment, user), or
// nil when the user has never been bucketed.
func (r *Registry) Assignment(experimentID, userID string) *experiment.Assignment {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assignments[experiment.AssignmentKey(experimentID, userID)]
	if !ok {
		return nil
	}
	return cloneAssignment(a)
}

// pageMatches gates inclusion by target page. An empty pattern set
// matches every page; a pattern starting with "*" matches any path
// containing the remainder.
func pageMatches(patterns []string, path string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if pattern == path {
			return true
		}
		if strings.HasPrefix(pattern, "*") && strings.Contains(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}
	return false
}

// Assigner buckets the current browsing context, resolving the user id
// and page path from the injected providers.
type Assigner struct {
	reg   *Registry
	paths CurrentPathProvider
	ids   UserIdentityProvider
}

func NewAssigner(reg *Registry, paths CurrentPathProvider, ids UserIdentityProvider) *Assigner {
	return &Assigner{reg: reg, paths: paths, ids: ids}
}

func (a *Assigner) Assign(experimentID string) (*experiment.Assignment, error) {
	return a.reg.Assign(experimentID, a.ids.UserID(), a.paths.CurrentPath())
}
