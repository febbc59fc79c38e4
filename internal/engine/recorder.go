package engine

import (
	"github.com/splitkit/splitkit/internal/bus"
	"github.com/splitkit/splitkit/internal/experiment"
)

// ConversionData is the bus payload for a recorded conversion.
type ConversionData struct {
	ExperimentID string            `json:"experimentId"`
	UserID       string            `json:"userId"`
	VariantID    string            `json:"variantId"`
	Goal         string            `json:"goal"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// RecordConversion records a conversion for an already-assigned user.
// It is a no-op when the user has no assignment, the goal is not
// tracked, the goal was already converted by this user (at most one
// conversion per goal per user), or the experiment is completed.
// Completed results are frozen; late beacons must not move them.
func (r *Registry) RecordConversion(experimentID, goal, userID string, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[experimentID]
	if !ok {
		return nil
	}
	if exp.Status == experiment.StatusCompleted {
		return nil
	}

	a, ok := r.assignments[experiment.AssignmentKey(experimentID, userID)]
	if !ok {
		return nil
	}
	if !exp.TracksGoal(goal) {
		return nil
	}
	if a.HasConversion(goal) {
		return nil
	}

	a.ConversionEvents = append(a.ConversionEvents, experiment.ConversionEvent{
		Goal:      goal,
		Timestamp: r.now(),
		Metadata:  metadata,
	})
	a.Converted = true

	if a.VariantID == exp.Challenger().ID {
		exp.Results.VariantB.Conversions++
	} else {
		exp.Results.VariantA.Conversions++
	}
	refreshResults(exp)
	exp.UpdatedAt = r.now()

	r.persistLocked()
	r.bus.Publish(bus.EventConversion, ConversionData{
		ExperimentID: experimentID,
		UserID:       userID,
		VariantID:    a.VariantID,
		Goal:         goal,
		Metadata:     metadata,
	})
	return nil
}

// DomainEvent is a generic business event forwarded by an external
// analytics collaborator.
type DomainEvent struct {
	Type     string            `json:"type"`
	UserID   string            `json:"userId"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Recorder records conversions, resolving the user id from the injected
// identity provider when the caller has none.
type Recorder struct {
	reg *Registry
	ids UserIdentityProvider
}

func NewRecorder(reg *Registry, ids UserIdentityProvider) *Recorder {
	return &Recorder{reg: reg, ids: ids}
}

func (c *Recorder) Record(experimentID, goal, userID string, metadata map[string]string) error {
	if userID == "" {
		userID = c.ids.UserID()
	}
	return c.reg.RecordConversion(experimentID, goal, userID, metadata)
}

// Forward is the consumed event-publish hook: it records a conversion
// for every active experiment that tracks the event type as a goal.
func (c *Recorder) Forward(ev DomainEvent) {
	userID := ev.UserID
	if userID == "" {
		userID = c.ids.UserID()
	}
	for _, exp := range c.reg.List(experiment.StatusActive) {
		if exp.TracksGoal(ev.Type) {
			// Errors cannot occur for a known experiment; the recording
			// itself degrades to a no-op when the user is unassigned.
			_ = c.reg.RecordConversion(exp.ID, ev.Type, userID, ev.Metadata)
		}
	}
}
