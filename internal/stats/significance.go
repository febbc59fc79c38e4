package stats

// Counts is the visitor/conversion tally for one variant.
type Counts struct {
	Visitors    int
	Conversions int
}

const (
	// MinSampleSize is the per-variant visitor count below which no
	// significance test is attempted.
	MinSampleSize = 30

	// chiSquareCritical95 is the critical value for 1 degree of
	// freedom at 95% confidence.
	chiSquareCritical95 = 3.841

	maxConfidence = 99
)

// Outcome is the result of evaluating two variants against each other.
// Winner is 0 (control), 1 (challenger), or -1 when no winner can be
// declared.
type Outcome struct {
	RateA       float64
	RateB       float64
	ChiSquare   float64
	Confidence  float64
	Significant bool
	Winner      int
}

// Rate returns conversions/visitors, 0 when there are no visitors.
func Rate(c Counts) float64 {
	if c.Visitors == 0 {
		return 0
	}
	return float64(c.Conversions) / float64(c.Visitors)
}

// ChiSquare computes the goodness-of-fit statistic for the two variants'
// conversion counts against the pooled conversion rate.
func ChiSquare(a, b Counts) float64 {
	totalVisitors := a.Visitors + b.Visitors
	totalConversions := a.Conversions + b.Conversions
	if totalVisitors == 0 || totalConversions == 0 {
		return 0
	}

	pooled := float64(totalConversions) / float64(totalVisitors)
	expectedA := float64(a.Visitors) * pooled
	expectedB := float64(b.Visitors) * pooled

	var chi float64
	if expectedA > 0 {
		d := float64(a.Conversions) - expectedA
		chi += d * d / expectedA
	}
	if expectedB > 0 {
		d := float64(b.Conversions) - expectedB
		chi += d * d / expectedB
	}
	return chi
}

// Evaluate computes rates, the chi-square statistic, confidence, and a
// winner for the two variants.
//
// The confidence number is a monotonic proxy scaled against the critical
// value, min(chi/3.841*95, 99), not a calibrated p-value. It is kept for
// compatibility with existing consumers of exported results; the Wilson
// intervals in this package give a calibrated range alongside it.
func Evaluate(a, b Counts) Outcome {
	out := Outcome{
		RateA:  Rate(a),
		RateB:  Rate(b),
		Winner: -1,
	}

	if a.Visitors < MinSampleSize || b.Visitors < MinSampleSize {
		return out
	}

	out.ChiSquare = ChiSquare(a, b)
	out.Significant = out.ChiSquare > chiSquareCritical95

	out.Confidence = out.ChiSquare / chiSquareCritical95 * 95
	if out.Confidence > maxConfidence {
		out.Confidence = maxConfidence
	}

	if out.Significant {
		if out.RateB > out.RateA {
			out.Winner = 1
		} else if out.RateA > out.RateB {
			out.Winner = 0
		} else {
			out.Significant = false
		}
	}
	return out
}
