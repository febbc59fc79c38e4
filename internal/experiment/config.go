package experiment

import "strings"

// Config describes a new experiment. Zero-value fields that have
// defaults (ID, variant IDs) are filled in by the registry on create.
type Config struct {
	ID                string
	Name              string
	Description       string
	Variants          []Variant
	TrafficAllocation int
	TargetPages       []string
	Goals             []string
}

// Validate checks the config and reports all violations together.
func (c Config) Validate() error {
	var violations []string

	if strings.TrimSpace(c.Name) == "" {
		violations = append(violations, "name must not be empty")
	}
	if len(c.Variants) < 2 {
		violations = append(violations, "at least 2 variants are required")
	}
	if c.TrafficAllocation < 1 || c.TrafficAllocation > 99 {
		violations = append(violations, "traffic allocation must be between 1 and 99")
	}
	if len(c.Goals) == 0 {
		violations = append(violations, "at least one goal is required")
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
