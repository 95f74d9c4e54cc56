package metrics

import (
	"math"
	"slices"

	"courtside/internal/pose"
)

// Sample is one timestamped scalar.
type Sample struct {
	Timestamp float64
	Value     float64
}

// VelocitySample is one timestamped speed in normalized units per second.
// Speed is nil when either endpoint of the difference was missing.
type VelocitySample struct {
	Timestamp float64
	Speed     *float64
}

// Event is a notable moment, such as a velocity peak.
type Event struct {
	Timestamp float64
	Label     string
	Value     float64
}

// PlayerMetrics is the finalized motion summary for one player slot.
type PlayerMetrics struct {
	Player      int
	Frames      int
	Misses      int
	JointAngles map[string][]Sample
	Distances   map[string][]Sample
	Velocities  map[string][]VelocitySample
	Events      []Event
}

// clone returns a deep copy so callers cannot reach aggregator state.
func (m PlayerMetrics) clone() PlayerMetrics {
	out := m
	out.JointAngles = cloneSeries(m.JointAngles)
	out.Distances = cloneSeries(m.Distances)
	out.Velocities = make(map[string][]VelocitySample, len(m.Velocities))
	for k, v := range m.Velocities {
		cp := make([]VelocitySample, len(v))
		for i, s := range v {
			cp[i] = s
			if s.Speed != nil {
				speed := *s.Speed
				cp[i].Speed = &speed
			}
		}
		out.Velocities[k] = cp
	}
	out.Events = slices.Clone(m.Events)
	return out
}

func cloneSeries(in map[string][]Sample) map[string][]Sample {
	out := make(map[string][]Sample, len(in))
	for k, v := range in {
		cp := make([]Sample, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Joint names a three-point angle measured at B.
type Joint struct {
	Name    string
	A, B, C pose.Landmark
}

// Pair names a landmark-to-landmark distance.
type Pair struct {
	Name string
	A, B pose.Landmark
}

// Joints lists the tracked joint angles in report order.
var Joints = []Joint{
	{Name: "left_elbow", A: pose.LeftShoulder, B: pose.LeftElbow, C: pose.LeftWrist},
	{Name: "right_elbow", A: pose.RightShoulder, B: pose.RightElbow, C: pose.RightWrist},
	{Name: "left_knee", A: pose.LeftHip, B: pose.LeftKnee, C: pose.LeftAnkle},
	{Name: "right_knee", A: pose.RightHip, B: pose.RightKnee, C: pose.RightAnkle},
	{Name: "left_shoulder", A: pose.LeftHip, B: pose.LeftShoulder, C: pose.LeftElbow},
	{Name: "right_shoulder", A: pose.RightHip, B: pose.RightShoulder, C: pose.RightElbow},
}

// Pairs lists the tracked distances in report order.
var Pairs = []Pair{
	{Name: "wrist_to_wrist", A: pose.LeftWrist, B: pose.RightWrist},
	{Name: "ankle_to_ankle", A: pose.LeftAnkle, B: pose.RightAnkle},
	{Name: "left_wrist_to_shoulder", A: pose.LeftWrist, B: pose.LeftShoulder},
	{Name: "right_wrist_to_shoulder", A: pose.RightWrist, B: pose.RightShoulder},
}

// VelocityLandmarks lists the landmarks whose speed is tracked.
var VelocityLandmarks = []pose.Landmark{
	pose.LeftWrist,
	pose.RightWrist,
	pose.LeftAnkle,
	pose.RightAnkle,
}

// Stats summarizes a series.
type Stats struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
}

// Summarize returns min, max and mean of samples. Count is zero for an empty
// series.
func Summarize(samples []Sample) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	st := Stats{Count: len(samples), Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, s := range samples {
		st.Min = math.Min(st.Min, s.Value)
		st.Max = math.Max(st.Max, s.Value)
		sum += s.Value
	}
	st.Mean = sum / float64(len(samples))
	return st
}

// SummarizeVelocity summarizes the present speeds of a velocity series.
func SummarizeVelocity(samples []VelocitySample) Stats {
	present := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Speed != nil {
			present = append(present, Sample{Timestamp: s.Timestamp, Value: *s.Speed})
		}
	}
	return Summarize(present)
}
