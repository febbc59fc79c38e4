package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/splitkit/splitkit/internal/bus"
	"github.com/splitkit/splitkit/internal/experiment"
)

// Export is the portable form of a single experiment: the record plus
// every assignment keyed under it.
type Export struct {
	Experiment  *experiment.Experiment   `json:"experiment"`
	Assignments []*experiment.Assignment `json:"assignments"`
	ExportDate  time.Time                `json:"exportDate"`
}

// Export snapshots one experiment and its assignments.
func (r *Registry) Export(id string) (*Export, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return nil, &experiment.NotFoundError{ID: id}
	}

	var assignments []*experiment.Assignment
	for _, a := range r.assignments {
		if a.ExperimentID == id {
			assignments = append(assignments, cloneAssignment(a))
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].AssignedAt.Equal(assignments[j].AssignedAt) {
			return assignments[i].UserID < assignments[j].UserID
		}
		return assignments[i].AssignedAt.Before(assignments[j].AssignedAt)
	})

	return &Export{
		Experiment:  cloneExperiment(exp),
		Assignments: assignments,
		ExportDate:  r.now(),
	}, nil
}

// Import registers an exported experiment and its assignments as-is.
// Results and variants are taken from the export, not recomputed, so a
// round trip reproduces them exactly.
func (r *Registry) Import(ex *Export) (*experiment.Experiment, error) {
	if ex == nil || ex.Experiment == nil || ex.Experiment.ID == "" {
		return nil, fmt.Errorf("export has no experiment")
	}
	if err := validateImported(ex.Experiment); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := ex.Experiment.ID
	if _, exists := r.experiments[id]; exists {
		return nil, fmt.Errorf("experiment %q already exists", id)
	}

	exp := cloneExperiment(ex.Experiment)
	r.experiments[id] = exp
	for _, a := range ex.Assignments {
		if a.ExperimentID != id {
			continue
		}
		r.assignments[experiment.AssignmentKey(id, a.UserID)] = cloneAssignment(a)
	}

	r.persistLocked()
	r.bus.Publish(bus.EventExperimentCreated, cloneExperiment(exp))

	return cloneExperiment(exp), nil
}

// validateImported rejects export files whose experiment the engine
// could not operate on. Assigning against an experiment with fewer than
// two variants would panic, so malformed files are refused up front.
func validateImported(exp *experiment.Experiment) error {
	if len(exp.Variants) < 2 {
		return fmt.Errorf("export experiment %q has %d variants, need at least 2", exp.ID, len(exp.Variants))
	}

	switch exp.Status {
	case experiment.StatusDraft, experiment.StatusActive, experiment.StatusPaused, experiment.StatusCompleted:
	default:
		return fmt.Errorf("export experiment %q has unknown status %q", exp.ID, exp.Status)
	}

	for _, res := range []experiment.VariantResult{exp.Results.VariantA, exp.Results.VariantB} {
		if res.Visitors < 0 || res.Conversions < 0 || res.Conversions > res.Visitors {
			return fmt.Errorf("export experiment %q has inconsistent counters (%d conversions, %d visitors)",
				exp.ID, res.Conversions, res.Visitors)
		}
	}
	return nil
}
