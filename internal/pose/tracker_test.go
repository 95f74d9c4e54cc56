package pose

import "testing"

func det(x, y, w, h float64) Detection {
	return Detection{Box: Box{X: x, Y: y, W: w, H: h}}
}

func TestTrackerFirstFrameLargestBoxFirst(t *testing.T) {
	tr := NewTracker(2)
	got := tr.Assign([]Detection{
		det(0.1, 0.1, 0.1, 0.1), // small
		det(0.6, 0.5, 0.3, 0.4), // large
	})
	if got[0] != 1 || got[1] != 0 {
		t.Fatalf("expected largest detection in slot 0, got %v", got)
	}
}

func TestTrackerFollowsNearestCentroid(t *testing.T) {
	tr := NewTracker(2)
	tr.Assign([]Detection{det(0.0, 0.0, 0.2, 0.4), det(0.7, 0.0, 0.1, 0.2)})

	// Detections reported in swapped order, each moved slightly.
	got := tr.Assign([]Detection{det(0.72, 0.0, 0.1, 0.2), det(0.02, 0.0, 0.2, 0.4)})
	if got[0] != 1 || got[1] != 0 {
		t.Fatalf("expected identities to follow centroids, got %v", got)
	}
}

func TestTrackerKeepsHistoryAcrossMiss(t *testing.T) {
	tr := NewTracker(2)
	tr.Assign([]Detection{det(0.0, 0.0, 0.2, 0.4), det(0.7, 0.0, 0.2, 0.2)})

	got := tr.Assign([]Detection{det(0.71, 0.0, 0.2, 0.2)})
	if got[0] != -1 || got[1] != 0 {
		t.Fatalf("expected slot 0 miss and slot 1 matched, got %v", got)
	}
	got = tr.Assign(nil)
	if got[0] != -1 || got[1] != -1 {
		t.Fatalf("expected both misses, got %v", got)
	}
	got = tr.Assign([]Detection{det(0.69, 0.0, 0.2, 0.2), det(0.01, 0.0, 0.2, 0.4)})
	if got[0] != 1 || got[1] != 0 {
		t.Fatalf("expected history to survive misses, got %v", got)
	}
}

func TestTrackerEquidistantDetectionsPreferSmallerHorizontalOffset(t *testing.T) {
	tr := NewTracker(1)
	tr.Assign([]Detection{det(0.25, 0.25, 0.5, 0.5)}) // centroid (0.5, 0.5)

	// Both centroids are 0.25 away: one to the right, one straight below.
	got := tr.Assign([]Detection{det(0.5, 0.25, 0.5, 0.5), det(0.25, 0.5, 0.5, 0.5)})
	if got[0] != 1 {
		t.Fatalf("expected detection with smaller x offset, got %v", got)
	}
}

func TestTrackerEquidistantIdenticalDetectionsPreferLowerIndex(t *testing.T) {
	tr := NewTracker(1)
	tr.Assign([]Detection{det(0.25, 0.25, 0.5, 0.5)})

	got := tr.Assign([]Detection{det(0.25, 0.5, 0.5, 0.5), det(0.25, 0.5, 0.5, 0.5)})
	if got[0] != 0 {
		t.Fatalf("expected lower detection index, got %v", got)
	}
}

func TestTrackerCompetingSlotsLowerIndexKeeps(t *testing.T) {
	tr := NewTracker(2)
	// Centroids (0.25, 0.5) and (0.75, 0.5); the first box is larger.
	tr.Assign([]Detection{det(0.125, 0.25, 0.25, 0.5), det(0.625, 0.375, 0.25, 0.25)})

	// Single detection centred exactly between the two slots.
	got := tr.Assign([]Detection{det(0.375, 0.375, 0.25, 0.25)})
	if got[0] != 0 || got[1] != -1 {
		t.Fatalf("expected slot 0 to keep contested detection, got %v", got)
	}
}

func TestTrackerLateSlotTakesLeftover(t *testing.T) {
	tr := NewTracker(2)
	first := tr.Assign([]Detection{det(0.1, 0.1, 0.2, 0.2)})
	if first[0] != 0 || first[1] != -1 {
		t.Fatalf("unexpected first assignment %v", first)
	}
	got := tr.Assign([]Detection{det(0.8, 0.1, 0.1, 0.1), det(0.11, 0.1, 0.2, 0.2)})
	if got[0] != 1 || got[1] != 0 {
		t.Fatalf("expected new player to fill slot 1, got %v", got)
	}
}

func TestDetectionCentroidFallsBackToKeypoints(t *testing.T) {
	d := Detection{Keypoints: []Keypoint{{X: 0.25, Y: 0.25}, {X: 0.75, Y: 0.5}}}
	x, y := d.Centroid()
	if x != 0.5 || y != 0.375 {
		t.Fatalf("unexpected centroid (%v, %v)", x, y)
	}
}
