package analysis

type WarningKind string

const (
	// WarningAnomalousTiming marks frames whose duration collapsed to zero or
	// less and was clamped to MinDuration.
	WarningAnomalousTiming WarningKind = "anomalous_timing"
	// WarningReordered marks input that arrived out of presentation order.
	WarningReordered WarningKind = "reordered"
	// WarningFallbackDuration marks a tail frame whose duration could not be
	// derived from timing or configuration.
	WarningFallbackDuration WarningKind = "fallback_duration"
	// NoticeSamplingApplied is informational: the retained per-frame series
	// was decimated.
	NoticeSamplingApplied WarningKind = "sampling_applied"
)

// Warning is a non-fatal condition attached to a Result. Repeated conditions
// are folded into one entry; Index is the first affected frame.
type Warning struct {
	Kind    WarningKind
	Index   int
	Count   int
	Message string
}

func (w Warning) Notice() bool {
	return w.Kind == NoticeSamplingApplied
}
