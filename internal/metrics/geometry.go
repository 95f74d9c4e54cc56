package metrics

import "math"

// Point is a 2D position in normalized image coordinates.
type Point struct {
	X, Y float64
}

// Angle returns the angle at vertex b formed by a-b-c, in degrees within
// [0, 180]. ok is false when either arm has zero length.
func Angle(a, b, c Point) (deg float64, ok bool) {
	bax, bay := a.X-b.X, a.Y-b.Y
	bcx, bcy := c.X-b.X, c.Y-b.Y
	na := math.Hypot(bax, bay)
	nc := math.Hypot(bcx, bcy)
	if na == 0 || nc == 0 {
		return 0, false
	}
	cos := (bax*bcx + bay*bcy) / (na * nc)
	cos = math.Max(-1, math.Min(1, cos))
	deg = math.Acos(cos) * 180 / math.Pi
	return math.Max(0, math.Min(180, deg)), true
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
