package engine

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/splitkit/splitkit/internal/bus"
	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/stats"
	"github.com/splitkit/splitkit/internal/store"
)

// Registry owns the experiment and assignment collections. All mutation
// goes through its operations; every mutating call persists the full
// snapshot and publishes an event on the bus.
type Registry struct {
	mu          sync.Mutex
	experiments map[string]*experiment.Experiment
	assignments map[string]*experiment.Assignment

	blobs store.BlobStore
	bus   *bus.Bus
	log   zerolog.Logger
	rng   *rand.Rand
	now   func() time.Time

	dirty      bool
	flushEvery time.Duration
	stop       chan struct{}
	done       chan struct{}
}

type Option func(*Registry)

// WithRand replaces the bucketing source, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(r *Registry) { r.rng = rng }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the registry logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithFlushInterval enables a background loop that retries failed
// snapshot writes. Zero disables it.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Registry) { r.flushEvery = d }
}

// New loads both snapshot keys from the blob store and returns a ready
// registry. A missing snapshot is an empty registry, not an error.
func New(blobs store.BlobStore, b *bus.Bus, opts ...Option) (*Registry, error) {
	r := &Registry{
		experiments: make(map[string]*experiment.Experiment),
		assignments: make(map[string]*experiment.Assignment),
		blobs:       blobs,
		bus:         b,
		log:         zerolog.Nop(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.loadSnapshot(); err != nil {
		return nil, err
	}

	if r.flushEvery > 0 {
		r.stop = make(chan struct{})
		r.done = make(chan struct{})
		go r.flushLoop()
	}

	return r, nil
}

// Close stops the flush loop and writes a final snapshot if one is
// pending.
func (r *Registry) Close() error {
	if r.stop != nil {
		close(r.stop)
		<-r.done
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dirty {
		r.persistLocked()
	}
	return nil
}

// Create validates the config and registers a draft experiment. Nothing
// is persisted on validation failure.
func (r *Registry) Create(cfg experiment.Config) (*experiment.Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := r.experiments[id]; exists {
		return nil, fmt.Errorf("experiment %q already exists", id)
	}

	variants := make([]experiment.Variant, len(cfg.Variants))
	for i, v := range cfg.Variants {
		if v.ID == "" {
			v.ID = fmt.Sprintf("variant_%d", i)
		}
		variants[i] = v
	}

	now := r.now()
	exp := &experiment.Experiment{
		ID:                id,
		Name:              cfg.Name,
		Description:       cfg.Description,
		Status:            experiment.StatusDraft,
		Variants:          variants,
		TrafficAllocation: cfg.TrafficAllocation,
		TargetPages:       append([]string(nil), cfg.TargetPages...),
		Goals:             append([]string(nil), cfg.Goals...),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.experiments[id] = exp

	r.persistLocked()
	r.bus.Publish(bus.EventExperimentCreated, cloneExperiment(exp))

	return cloneExperiment(exp), nil
}

// Start activates a draft or paused experiment. The start date is
// stamped on the first activation only.
func (r *Registry) Start(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return &experiment.NotFoundError{ID: id}
	}
	if exp.Status != experiment.StatusDraft && exp.Status != experiment.StatusPaused {
		return &experiment.InvalidStateError{ID: id, From: exp.Status, Op: "start"}
	}

	exp.Status = experiment.StatusActive
	if exp.StartDate == nil {
		t := r.now()
		exp.StartDate = &t
	}
	exp.UpdatedAt = r.now()

	r.persistLocked()
	r.bus.Publish(bus.EventExperimentStarted, cloneExperiment(exp))
	return nil
}

// Pause stops new assignment for an active experiment. Existing
// assignments stay sticky and conversions for them still apply.
func (r *Registry) Pause(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return &experiment.NotFoundError{ID: id}
	}
	if exp.Status != experiment.StatusActive {
		return &experiment.InvalidStateError{ID: id, From: exp.Status, Op: "pause"}
	}

	exp.Status = experiment.StatusPaused
	exp.UpdatedAt = r.now()

	r.persistLocked()
	r.bus.Publish(bus.EventExperimentPaused, cloneExperiment(exp))
	return nil
}

// Complete ends an experiment from any non-completed state, stamps the
// end date, and freezes results. Completed is terminal.
func (r *Registry) Complete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return &experiment.NotFoundError{ID: id}
	}
	if exp.Status == experiment.StatusCompleted {
		return &experiment.InvalidStateError{ID: id, From: exp.Status, Op: "complete"}
	}

	exp.Status = experiment.StatusCompleted
	t := r.now()
	exp.EndDate = &t
	exp.UpdatedAt = t
	refreshResults(exp)

	r.persistLocked()
	r.bus.Publish(bus.EventExperimentCompleted, cloneExperiment(exp))
	return nil
}

// Get returns a copy of the experiment.
func (r *Registry) Get(id string) (*experiment.Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return nil, &experiment.NotFoundError{ID: id}
	}
	return cloneExperiment(exp), nil
}

// Results returns the current derived results for an experiment.
func (r *Registry) Results(id string) (experiment.Results, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return experiment.Results{}, &experiment.NotFoundError{ID: id}
	}
	return exp.Results, nil
}

// List returns experiments, newest first, optionally filtered by status.
func (r *Registry) List(statuses ...experiment.Status) []*experiment.Experiment {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*experiment.Experiment
	for _, exp := range r.experiments {
		if len(statuses) > 0 && !statusIn(exp.Status, statuses) {
			continue
		}
		out = append(out, cloneExperiment(exp))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes an experiment and all of its assignments.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return &experiment.NotFoundError{ID: id}
	}

	delete(r.experiments, id)
	for key, a := range r.assignments {
		if a.ExperimentID == id {
			delete(r.assignments, key)
		}
	}

	r.persistLocked()
	r.bus.Publish(bus.EventExperimentDeleted, cloneExperiment(exp))
	return nil
}

// Reset drops an experiment's assignments and zeroes its counters and
// results. Not allowed once the experiment is completed.
func (r *Registry) Reset(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return &experiment.NotFoundError{ID: id}
	}
	if exp.Status == experiment.StatusCompleted {
		return &experiment.InvalidStateError{ID: id, From: exp.Status, Op: "reset"}
	}

	for key, a := range r.assignments {
		if a.ExperimentID == id {
			delete(r.assignments, key)
		}
	}
	exp.Results = experiment.Results{}
	exp.UpdatedAt = r.now()

	r.persistLocked()
	return nil
}

func statusIn(s experiment.Status, set []experiment.Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// refreshResults recomputes the derived results from the binary-split
// counters. Only the first two variants ever participate.
func refreshResults(exp *experiment.Experiment) {
	a := stats.Counts{
		Visitors:    exp.Results.VariantA.Visitors,
		Conversions: exp.Results.VariantA.Conversions,
	}
	b := stats.Counts{
		Visitors:    exp.Results.VariantB.Visitors,
		Conversions: exp.Results.VariantB.Conversions,
	}

	out := stats.Evaluate(a, b)
	exp.Results.VariantA.ConversionRate = out.RateA
	exp.Results.VariantB.ConversionRate = out.RateB
	exp.Results.Confidence = out.Confidence
	exp.Results.StatisticalSignificance = out.Significant

	switch out.Winner {
	case 0:
		exp.Results.Winner = exp.Control().ID
	case 1:
		exp.Results.Winner = exp.Challenger().ID
	default:
		exp.Results.Winner = ""
	}
}

func cloneExperiment(exp *experiment.Experiment) *experiment.Experiment {
	out := *exp
	out.Variants = append([]experiment.Variant(nil), exp.Variants...)
	out.TargetPages = append([]string(nil), exp.TargetPages...)
	out.Goals = append([]string(nil), exp.Goals...)
	if exp.StartDate != nil {
		t := *exp.StartDate
		out.StartDate = &t
	}
	if exp.EndDate != nil {
		t := *exp.EndDate
		out.EndDate = &t
	}
	return &out
}

func cloneAssignment(a *experiment.Assignment) *experiment.Assignment {
	out := *a
	out.ConversionEvents = append([]experiment.ConversionEvent(nil), a.ConversionEvents...)
	return &out
}
