package route

import (
	"fmt"

	"github.com/samber/lo"
)

// ResolvedWaypoints drops waypoints without a place identifier. They are never sent upstream.
func ResolvedWaypoints(wps []Waypoint) []Waypoint {
	return lo.Filter(wps, func(wp Waypoint, _ int) bool {
		return wp.Place.IsResolved()
	})
}

// ValidateOrder checks that order is a permutation of 0..n-1.
func ValidateOrder(order []OptimizedIndex, n int) error {
	if len(order) != n {
		return fmt.Errorf("optimized order has %d entries for %d waypoints", len(order), n)
	}
	seen := make([]bool, n)
	for i, o := range order {
		if o.OriginalIndex < 0 || o.OriginalIndex >= n {
			return fmt.Errorf("optimized order entry %d points at index %d out of range", i, o.OriginalIndex)
		}
		if seen[o.OriginalIndex] {
			return fmt.Errorf("optimized order repeats index %d", o.OriginalIndex)
		}
		seen[o.OriginalIndex] = true
	}
	return nil
}

// ApplyOptimizedOrder projects the optimizer's permutation onto the caller's waypoints:
// out[i] = wps[order[i].OriginalIndex]. An empty order returns the input order unchanged.
func ApplyOptimizedOrder(wps []Waypoint, order []OptimizedIndex) ([]Waypoint, error) {
	if len(order) == 0 {
		return CloneWaypoints(wps), nil
	}
	if err := ValidateOrder(order, len(wps)); err != nil {
		return nil, err
	}
	return lo.Map(order, func(o OptimizedIndex, _ int) Waypoint {
		wp := wps[o.OriginalIndex]
		return Waypoint{Place: *wp.Place.Clone(), Stopover: wp.Stopover}
	}), nil
}
