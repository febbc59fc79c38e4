package experiment

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Variant is one arm of an experiment. Identity is by ID and never
// changes after creation.
type Variant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// VariantResult holds the running counters for one arm.
type VariantResult struct {
	Visitors       int     `json:"visitors"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
}

// Results is derived state, recomputed after every counter change.
type Results struct {
	VariantA                VariantResult `json:"variantA"`
	VariantB                VariantResult `json:"variantB"`
	Confidence              float64       `json:"confidence"`
	Winner                  string        `json:"winner,omitempty"`
	StatisticalSignificance bool          `json:"statisticalSignificance"`
}

type Experiment struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	Status            Status     `json:"status"`
	Variants          []Variant  `json:"variants"`
	TrafficAllocation int        `json:"trafficAllocation"`
	TargetPages       []string   `json:"targetPages,omitempty"`
	Goals             []string   `json:"goals"`
	Results           Results    `json:"results"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	StartDate         *time.Time `json:"startDate,omitempty"`
	EndDate           *time.Time `json:"endDate,omitempty"`
}

// Control and Challenger are the only two arms that ever participate in
// bucketing and results; extra configured variants are carried but inert.
func (e *Experiment) Control() Variant    { return e.Variants[0] }
func (e *Experiment) Challenger() Variant { return e.Variants[1] }

func (e *Experiment) TracksGoal(goal string) bool {
	for _, g := range e.Goals {
		if g == goal {
			return true
		}
	}
	return false
}

// ConversionEvent records one occurrence of a tracked goal.
type ConversionEvent struct {
	Goal      string            `json:"goal"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Assignment is the sticky binding of a user to a variant. The variant
// choice is immutable for the lifetime of the experiment.
type Assignment struct {
	ExperimentID     string            `json:"experimentId"`
	UserID           string            `json:"userId"`
	VariantID        string            `json:"variantId"`
	AssignedAt       time.Time         `json:"assignedAt"`
	Converted        bool              `json:"converted"`
	ConversionEvents []ConversionEvent `json:"conversionEvents,omitempty"`
}

func (a *Assignment) HasConversion(goal string) bool {
	for _, ev := range a.ConversionEvents {
		if ev.Goal == goal {
			return true
		}
	}
	return false
}

// AssignmentKey is the snapshot key for an assignment.
func AssignmentKey(experimentID, userID string) string {
	return experimentID + "_" + userID
}
