package pose

import "strings"

// Landmark identifies one of the 33 body landmarks reported by the pose model.
type Landmark int

const (
	Nose Landmark = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	// LandmarkCount is the number of landmarks in a full body pose.
	LandmarkCount = int(RightFootIndex) + 1
)

var landmarkNames = [LandmarkCount]string{
	"nose", "left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear", "mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_pinky", "right_pinky",
	"left_index", "right_index", "left_thumb", "right_thumb",
	"left_hip", "right_hip", "left_knee", "right_knee",
	"left_ankle", "right_ankle", "left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// String returns the snake_case landmark name.
func (l Landmark) String() string {
	if l < 0 || int(l) >= LandmarkCount {
		return "unknown"
	}
	return landmarkNames[l]
}

// Label returns the landmark name with spaces, e.g. "right wrist".
func (l Landmark) Label() string {
	return strings.ReplaceAll(l.String(), "_", " ")
}

// Valid reports whether l is one of the defined landmarks.
func (l Landmark) Valid() bool {
	return l >= 0 && int(l) < LandmarkCount
}

// Keypoint is one landmark position in normalized image coordinates.
type Keypoint struct {
	Landmark   Landmark
	X          float64
	Y          float64
	Confidence float64
}

// PoseFrame is one player's pose in one sampled frame. Miss is set when the
// player was not detected; Keypoints is then empty.
type PoseFrame struct {
	Player     int
	FrameIndex int
	Timestamp  float64
	Keypoints  map[Landmark]Keypoint
	Miss       bool
}

// Lookup returns the keypoint for l when present with at least minConfidence.
func (p PoseFrame) Lookup(l Landmark, minConfidence float64) (Keypoint, bool) {
	if p.Miss || p.Keypoints == nil {
		return Keypoint{}, false
	}
	kp, ok := p.Keypoints[l]
	if !ok || kp.Confidence < minConfidence {
		return Keypoint{}, false
	}
	return kp, true
}

// Box is an axis-aligned bounding box in normalized coordinates.
type Box struct {
	X, Y, W, H float64
}

// Area returns the box area.
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Center returns the box midpoint.
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Detection is one raw body found in a frame, before identity assignment.
type Detection struct {
	Box       Box
	Score     float64
	Keypoints []Keypoint
}

// Centroid returns the bounding-box center, falling back to the mean of the
// keypoints when the detector reported no box.
func (d Detection) Centroid() (float64, float64) {
	if d.Box.Area() > 0 {
		return d.Box.Center()
	}
	if len(d.Keypoints) == 0 {
		return 0, 0
	}
	var sx, sy float64
	for _, kp := range d.Keypoints {
		sx += kp.X
		sy += kp.Y
	}
	n := float64(len(d.Keypoints))
	return sx / n, sy / n
}

// area returns the bounding-box area, or the keypoint hull extent when no box.
func (d Detection) area() float64 {
	if a := d.Box.Area(); a > 0 {
		return a
	}
	if len(d.Keypoints) == 0 {
		return 0
	}
	minX, minY, maxX, maxY := d.Keypoints[0].X, d.Keypoints[0].Y, d.Keypoints[0].X, d.Keypoints[0].Y
	for _, kp := range d.Keypoints[1:] {
		minX, maxX = min(minX, kp.X), max(maxX, kp.X)
		minY, maxY = min(minY, kp.Y), max(maxY, kp.Y)
	}
	return (maxX - minX) * (maxY - minY)
}
