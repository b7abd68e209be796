package domain

import (
	"sort"
	"time"
)

// BlockGranularity is the fixed length of a schedulable availability slot.
const BlockGranularity = 30 * time.Minute

// Interval is a half-open UTC time range [Start, End).
type Interval struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether the two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Intersect returns the overlap of two intervals. ok is false when the
// overlap is empty.
func Intersect(a, b Interval) (Interval, bool) {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// DedupeSort removes duplicate intervals and orders the rest ascending by
// start time.
func DedupeSort(ivs []Interval) []Interval {
	seen := make(map[Interval]struct{}, len(ivs))
	out := ivs[:0]
	for _, iv := range ivs {
		if _, ok := seen[iv]; ok {
			continue
		}
		seen[iv] = struct{}{}
		out = append(out, iv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
