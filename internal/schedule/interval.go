package schedule

import "time"

// Interval is a half-open [Start, End) time range. Every overlap and
// containment decision in this package goes through these two predicates.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Overlaps reports whether the two intervals share at least one instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !iv.Start.After(other.Start) && !other.End.After(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}
