package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	at := func(mins int) time.Time { return base.Add(time.Duration(mins) * time.Minute) }

	tests := []struct {
		name string
		a    Interval
		b    Interval
		want bool
	}{
		{"identical", Interval{at(0), at(30)}, Interval{at(0), at(30)}, true},
		{"partial overlap", Interval{at(0), at(30)}, Interval{at(15), at(45)}, true},
		{"contained", Interval{at(0), at(60)}, Interval{at(15), at(30)}, true},
		{"touching ends", Interval{at(0), at(30)}, Interval{at(30), at(60)}, false},
		{"disjoint", Interval{at(0), at(30)}, Interval{at(45), at(60)}, false},
		{"reversed disjoint", Interval{at(45), at(60)}, Interval{at(0), at(30)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			// Overlap is symmetric.
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestIntervalContains(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	at := func(mins int) time.Time { return base.Add(time.Duration(mins) * time.Minute) }

	tests := []struct {
		name string
		a    Interval
		b    Interval
		want bool
	}{
		{"identical", Interval{at(0), at(60)}, Interval{at(0), at(60)}, true},
		{"strictly inside", Interval{at(0), at(60)}, Interval{at(15), at(45)}, true},
		{"shared start", Interval{at(0), at(60)}, Interval{at(0), at(30)}, true},
		{"shared end", Interval{at(0), at(60)}, Interval{at(30), at(60)}, true},
		{"spills left", Interval{at(0), at(60)}, Interval{at(-15), at(30)}, false},
		{"spills right", Interval{at(0), at(60)}, Interval{at(30), at(75)}, false},
		{"disjoint", Interval{at(0), at(60)}, Interval{at(90), at(120)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Contains(tt.b))
		})
	}
}

func TestIntervalValid(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	assert.True(t, Interval{base, base.Add(time.Minute)}.Valid())
	assert.False(t, Interval{base, base}.Valid())
	assert.False(t, Interval{base.Add(time.Minute), base}.Valid())
}
