package engine_test

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/splitkit/splitkit/internal/bus"
	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/stats"
)

func startAndAssign(t *testing.T, reg *engine.Registry, exp *experiment.Experiment, userID string) *experiment.Assignment {
	t.Helper()

	a, err := reg.Assign(exp.ID, userID, "/home")
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if a == nil {
		t.Fatal("expected an assignment")
	}
	return a
}

func totalConversions(exp *experiment.Experiment) int {
	return exp.Results.VariantA.Conversions + exp.Results.VariantB.Conversions
}

func TestRecord_Idempotent(t *testing.T) {
	reg, _, _ := setupRegistry(t)
	exp := createExperiment(t, reg)
	if err := reg.Start(exp.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	startAndAssign(t, reg, exp, "u1")

	for i := 0; i < 2; i++ {
		if err := reg.RecordConversion(exp.ID, "purchase", "u1", nil); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	got, _ := reg.Get(exp.ID)
	if totalConversions(got) != 1 {
		t.Errorf("expected exactly 1 conversion after duplicate records, got %d", totalConversions(got))
	}

	a := reg.Assignment(exp.ID, "u1")
	if !a.Converted {
		t.Error("expected converted flag set")
	}
	if len(a.ConversionEvents) != 1 {
		t.Errorf("expected 1 conversion event, got %d", len(a.ConversionEvents))
	}
}

func TestRecord_UntrackedGoalIgnored(t *testing.T) {
	reg, _, _ := setupRegistry(t)
	exp := createExperiment(t, reg)
	if err := reg.Start(exp.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	startAndAssign(t, reg, exp, "u1")

	if err := reg.RecordConversion(exp.ID, "newsletter", "u1", nil); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	got, _ := reg.Get(exp.ID)
	if totalConversions(got) != 0 {
		t.Errorf("untracked goal must not change counters, got %d conversions", totalConversions(got))
	}
}

func TestRecord_NoAssignmentNoOp(t *testing.T) {
	reg, _, _ := setupRegistry(t)
	exp := createExperiment(t, reg)
	if err := reg.Start(exp.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := reg.RecordConversion(exp.ID, "purchase", "stranger", nil); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	got, _ := reg.Get(exp.ID)
	if totalConversions(got) != 0 {
		t.Errorf("conversion without assignment must be a no-op, got %d", totalConversions(got))
	}
}

func TestRecord_UnknownExperimentNoOp(t *testing.T) {
	reg, _, _ := setupRegistry(t)

	if err := reg.RecordConversion("missing", "purchase", "u1", nil); err != nil {
		t.Errorf("expected silent no-op for unknown experiment, got %v", err)
	}
}

func TestRecord_DistinctGoalsBothCount(t *testing.T) {
	reg, _, _ := setupRegistry(t)

	cfg := basicConfig()
	cfg.Goals = []string{"purchase", "signup"}
	exp, err := reg.Create(cfg)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := reg.Start(exp.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	startAndAssign(t, reg, exp, "u1")

	reg.RecordConversion(exp.ID, "purchase", "u1", nil)
	reg.RecordConversion(exp.ID, "signup", "u1", nil)

	got, _ := reg.Get(exp.ID)
	if totalConversions(got) != 2 {
		t.Errorf("expected one conversion per distinct goal, got %d", totalConversions(got))
	}

	a := reg.Assignment(exp.ID, "u1")
	if len(a.ConversionEvents) != 2 {
		t.Errorf("expected 2 conversion events, got %d", len(a.ConversionEvents))
	}
}

func TestRecord_ConversionAppliesWhilePaused(t *testing.T) {
	reg, _, _ := setupRegistry(t)
	exp := createExperiment(t, reg)
	if err := reg.Start(exp.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	startAndAssign(t, reg, exp, "u1")

	if err := reg.Pause(exp.ID); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := reg.RecordConversion(exp.ID, "purchase", "u1", nil); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	got, _ := reg.Get(exp.ID)
	if totalConversions(got) != 1 {
		t.Errorf("sticky assignments must still convert while paused, got %d", totalConversions(got))
	}
}

func TestRecord_NoConversionAfterComplete(t *testing.T) {
	reg, _, _ := setupRegistry(t)
	exp := createExperiment(t, reg)
	if err := reg.Start(exp.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	startAndAssign(t, reg, exp, "u1")

	if err := reg.Complete(exp.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	frozen, _ := reg.Get(exp.ID)

	if err := reg.RecordConversion(exp.ID, "purchase", "u1", nil); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	got, _ := reg.Get(exp.ID)
	if totalConversions(got) != totalConversions(frozen) {
		t.Errorf("completed results must stay frozen: %d conversions before, %d after",
			totalConversions(frozen), totalConversions(got))
	}

	a := reg.Assignment(exp.ID, "u1")
	if a.Converted || len(a.ConversionEvents) != 0 {
		t.Errorf("late conversion must not touch the assignment, got %+v", a)
	}
}

func TestRecord_PublishesConversionEvent(t *testing.T) {
	reg, _, b := setupRegistry(t)
	exp := createExperiment(t, reg)
	if err := reg.Start(exp.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	a := startAndAssign(t, reg, exp, "u1")

	var events []bus.Event
	b.Subscribe(func(ev bus.Event) {
		if ev.Type == bus.EventConversion {
			events = append(events, ev)
		}
	})

	meta := map[string]string{"value": "42"}
	if err := reg.RecordConversion(exp.ID, "purchase", "u1", meta); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 conversion event, got %d", len(events))
	}
	data, ok := events[0].Data.(engine.ConversionData)
	if !ok {
		t.Fatalf("unexpected event payload %T", events[0].Data)
	}
	if data.ExperimentID != exp.ID || data.UserID != "u1" || data.VariantID != a.VariantID || data.Goal != "purchase" {
		t.Errorf("unexpected conversion payload %+v", data)
	}
	if data.Metadata["value"] != "42" {
		t.Errorf("expected metadata to be carried, got %v", data.Metadata)
	}
}

func TestRecorder_ForwardMatchesGoals(t *testing.T) {
	reg, _, _ := setupRegistry(t)
	exp := createExperiment(t, reg)
	if err := reg.Start(exp.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	startAndAssign(t, reg, exp, "u1")

	rec := engine.NewRecorder(reg, engine.IdentityFunc(func() string { return "u1" }))

	// Type matching a tracked goal converts
	rec.Forward(engine.DomainEvent{Type: "purchase", UserID: "u1"})
	// Type not tracked by any experiment is dropped
	rec.Forward(engine.DomainEvent{Type: "scroll_depth", UserID: "u1"})

	got, _ := reg.Get(exp.ID)
	if totalConversions(got) != 1 {
		t.Errorf("expected exactly 1 forwarded conversion, got %d", totalConversions(got))
	}
}

func TestScenario_FullExperiment(t *testing.T) {
	reg, _, _ := setupRegistry(t, engine.WithRand(rand.New(rand.NewSource(3))))
	exp := createExperiment(t, reg)
	if err := reg.Start(exp.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// 100 distinct users land on a matching page
	var aUsers, bUsers []string
	for i := 0; i < 100; i++ {
		userID := fmt.Sprintf("user-%d", i)
		a, err := reg.Assign(exp.ID, userID, "/home")
		if err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		if a.VariantID == exp.Challenger().ID {
			bUsers = append(bUsers, userID)
		} else {
			aUsers = append(aUsers, userID)
		}
	}

	// ~20% of control and ~30% of challenger users convert
	aConverts := len(aUsers) / 5
	bConverts := len(bUsers) * 3 / 10
	for _, userID := range aUsers[:aConverts] {
		reg.RecordConversion(exp.ID, "purchase", userID, nil)
	}
	for _, userID := range bUsers[:bConverts] {
		reg.RecordConversion(exp.ID, "purchase", userID, nil)
	}

	got, _ := reg.Get(exp.ID)
	res := got.Results

	if res.VariantA.Visitors != len(aUsers) || res.VariantB.Visitors != len(bUsers) {
		t.Fatalf("visitor counters diverged: %d/%d vs %d/%d",
			res.VariantA.Visitors, len(aUsers), res.VariantB.Visitors, len(bUsers))
	}
	if res.VariantA.Conversions != aConverts || res.VariantB.Conversions != bConverts {
		t.Fatalf("conversion counters diverged")
	}

	wantRateA := float64(aConverts) / float64(len(aUsers))
	if math.Abs(res.VariantA.ConversionRate-wantRateA) > 1e-9 {
		t.Errorf("expected rate A %f, got %f", wantRateA, res.VariantA.ConversionRate)
	}

	// The derived results must agree with a direct evaluation of the
	// same counters
	want := stats.Evaluate(
		stats.Counts{Visitors: res.VariantA.Visitors, Conversions: res.VariantA.Conversions},
		stats.Counts{Visitors: res.VariantB.Visitors, Conversions: res.VariantB.Conversions},
	)
	if res.StatisticalSignificance != want.Significant {
		t.Errorf("significance flag diverged from direct evaluation")
	}
	if want.Significant && res.Winner != exp.Challenger().ID {
		t.Errorf("expected challenger as winner, got %q", res.Winner)
	}
	if !want.Significant && res.Winner != "" {
		t.Errorf("expected no winner without significance, got %q", res.Winner)
	}
}
