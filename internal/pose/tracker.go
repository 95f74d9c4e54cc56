package pose

import (
	"math"
	"sort"
)

type slotState struct {
	known bool
	x, y  float64
}

// Tracker keeps player identities stable across frames.
type Tracker struct {
	slots []slotState
}

// NewTracker returns a tracker for players slots.
func NewTracker(players int) *Tracker {
	if players < 0 {
		players = 0
	}
	return &Tracker{slots: make([]slotState, players)}
}

// Assign maps detections to slots and returns, per slot, the detection index
// or -1 for a miss. Slot history is updated for matched slots only, so a slot
// keeps its last known centroid across misses.
//
// Known slots are matched first by ascending centroid distance. When two
// slots are equally close to one detection the lower slot index keeps it;
// when two detections are equally close to one slot the smaller horizontal
// offset wins, then the lower detection index. Slots never seen before take the remaining
// detections by descending area.
func (t *Tracker) Assign(detections []Detection) []int {
	out := make([]int, len(t.slots))
	for i := range out {
		out[i] = -1
	}
	if len(detections) == 0 || len(t.slots) == 0 {
		return out
	}
	taken := make([]bool, len(detections))

	type pair struct {
		slot, det int
		dist, dx  float64
	}
	var pairs []pair
	for s, st := range t.slots {
		if !st.known {
			continue
		}
		for d, det := range detections {
			cx, cy := det.Centroid()
			pairs = append(pairs, pair{
				slot: s, det: d,
				dist: math.Hypot(cx-st.x, cy-st.y),
				dx:   math.Abs(cx - st.x),
			})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.slot != b.slot {
			return a.slot < b.slot
		}
		if a.dx != b.dx {
			return a.dx < b.dx
		}
		return a.det < b.det
	})
	for _, p := range pairs {
		if out[p.slot] != -1 || taken[p.det] {
			continue
		}
		out[p.slot] = p.det
		taken[p.det] = true
	}

	remaining := make([]int, 0, len(detections))
	for d := range detections {
		if !taken[d] {
			remaining = append(remaining, d)
		}
	}
	sort.SliceStable(remaining, func(i, j int) bool {
		return detections[remaining[i]].area() > detections[remaining[j]].area()
	})
	next := 0
	for s, st := range t.slots {
		if st.known || next >= len(remaining) {
			continue
		}
		out[s] = remaining[next]
		next++
	}

	for s, d := range out {
		if d < 0 {
			continue
		}
		cx, cy := detections[d].Centroid()
		t.slots[s] = slotState{known: true, x: cx, y: cy}
	}
	return out
}
