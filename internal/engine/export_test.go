package engine_test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/splitkit/splitkit/internal/bus"
	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/store"
)

func TestExport_RoundTrip(t *testing.T) {
	reg, _, _ := setupRegistry(t, engine.WithRand(rand.New(rand.NewSource(11))))
	exp := createExperiment(t, reg)
	if err := reg.Start(exp.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	for i := 0; i < 80; i++ {
		userID := fmt.Sprintf("user-%d", i)
		if _, err := reg.Assign(exp.ID, userID, "/home"); err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		if i%4 == 0 {
			reg.RecordConversion(exp.ID, "purchase", userID, nil)
		}
	}

	export, err := reg.Export(exp.ID)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(export.Assignments) != 80 {
		t.Fatalf("expected 80 assignments, got %d", len(export.Assignments))
	}
	if export.ExportDate.IsZero() {
		t.Error("expected an export date")
	}

	// The export must survive its wire format
	data, err := json.Marshal(export)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded engine.Export
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	// Import into a fresh registry
	fresh, err := engine.New(store.NewMemory(), bus.New(zerolog.Nop()))
	if err != nil {
		t.Fatalf("failed to build fresh registry: %v", err)
	}
	defer fresh.Close()

	imported, err := fresh.Import(&decoded)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}

	if !reflect.DeepEqual(imported.Variants, export.Experiment.Variants) {
		t.Errorf("variants diverged after round trip")
	}
	if !reflect.DeepEqual(imported.Results, export.Experiment.Results) {
		t.Errorf("results diverged after round trip:\n  exported %+v\n  imported %+v",
			export.Experiment.Results, imported.Results)
	}

	// Assignments came along: the same users stay sticky in the fresh
	// registry
	a := fresh.Assignment(exp.ID, "user-0")
	if a == nil {
		t.Fatal("expected imported assignment")
	}
	if !a.Converted {
		t.Error("expected imported assignment to keep its conversion state")
	}
}

func TestExport_UnknownExperiment(t *testing.T) {
	reg, _, _ := setupRegistry(t)

	if _, err := reg.Export("missing"); err == nil {
		t.Error("expected error exporting unknown experiment")
	}
}

func TestImport_RejectsDuplicate(t *testing.T) {
	reg, _, _ := setupRegistry(t)
	exp := createExperiment(t, reg)

	export, err := reg.Export(exp.ID)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if _, err := reg.Import(export); err == nil {
		t.Error("expected error importing an existing experiment")
	}
}

func TestImport_RejectsMalformed(t *testing.T) {
	reg, _, _ := setupRegistry(t)

	valid := func() *experiment.Experiment {
		return &experiment.Experiment{
			ID:                "imported",
			Name:              "imported",
			Status:            experiment.StatusActive,
			Variants:          []experiment.Variant{{ID: "variant_0", Name: "A"}, {ID: "variant_1", Name: "B"}},
			TrafficAllocation: 50,
			Goals:             []string{"purchase"},
		}
	}

	cases := []struct {
		name   string
		mutate func(*experiment.Experiment)
	}{
		{"no variants", func(e *experiment.Experiment) { e.Variants = nil }},
		{"single variant", func(e *experiment.Experiment) { e.Variants = e.Variants[:1] }},
		{"unknown status", func(e *experiment.Experiment) { e.Status = "archived" }},
		{"conversions exceed visitors", func(e *experiment.Experiment) {
			e.Results.VariantA = experiment.VariantResult{Visitors: 1, Conversions: 5}
		}},
		{"negative visitors", func(e *experiment.Experiment) {
			e.Results.VariantB = experiment.VariantResult{Visitors: -1}
		}},
	}

	for _, tc := range cases {
		exp := valid()
		tc.mutate(exp)
		if _, err := reg.Import(&engine.Export{Experiment: exp}); err == nil {
			t.Errorf("%s: expected import to be rejected", tc.name)
		}
	}

	// Nothing was registered, so assigning against the rejected id is a
	// clean not-found, not a panic
	if _, err := reg.Assign("imported", "u1", "/home"); err == nil {
		t.Error("expected not-found assigning against a rejected import")
	}

	// The untouched valid payload still imports
	if _, err := reg.Import(&engine.Export{Experiment: valid()}); err != nil {
		t.Errorf("valid export rejected: %v", err)
	}
}

func TestImport_RejectsEmpty(t *testing.T) {
	reg, _, _ := setupRegistry(t)

	if _, err := reg.Import(nil); err == nil {
		t.Error("expected error importing nil export")
	}
	if _, err := reg.Import(&engine.Export{}); err == nil {
		t.Error("expected error importing export without experiment")
	}
}
