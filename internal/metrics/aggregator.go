package metrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"courtside/internal/pose"
)

// ErrFinalized is returned by Update once Finalize has been called.
var ErrFinalized = errors.New("metrics aggregator already finalized")

// Options configures an Aggregator.
type Options struct {
	Players int
	// MinConfidence is the keypoint confidence below which a landmark is
	// treated as absent.
	MinConfidence float64
	// EventsPerMetric is the number of peak events kept per velocity landmark.
	EventsPerMetric int
}

type playerState struct {
	metrics PlayerMetrics
	prev    *pose.PoseFrame
}

// Aggregator accumulates motion series for every player slot. It is safe for
// concurrent use.
type Aggregator struct {
	opts Options

	mu        sync.Mutex
	players   []*playerState
	finalized bool
	result    map[int]PlayerMetrics
}

// NewAggregator returns an empty aggregator with one slot per player.
func NewAggregator(opts Options) *Aggregator {
	if opts.Players < 0 {
		opts.Players = 0
	}
	if opts.EventsPerMetric <= 0 {
		opts.EventsPerMetric = 3
	}
	players := make([]*playerState, opts.Players)
	for i := range players {
		players[i] = &playerState{metrics: emptyMetrics(i)}
	}
	return &Aggregator{opts: opts, players: players}
}

func emptyMetrics(player int) PlayerMetrics {
	m := PlayerMetrics{
		Player:      player,
		JointAngles: make(map[string][]Sample, len(Joints)),
		Distances:   make(map[string][]Sample, len(Pairs)),
		Velocities:  make(map[string][]VelocitySample, len(VelocityLandmarks)),
	}
	for _, j := range Joints {
		m.JointAngles[j.Name] = []Sample{}
	}
	for _, p := range Pairs {
		m.Distances[p.Name] = []Sample{}
	}
	for _, l := range VelocityLandmarks {
		m.Velocities[l.String()] = []VelocitySample{}
	}
	return m
}

// Update folds a batch of pose frames into the series. Frames for one player
// must arrive in increasing timestamp order. The whole batch is rejected if
// the aggregator is finalized or any frame names an unknown player.
func (a *Aggregator) Update(batch []pose.PoseFrame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return ErrFinalized
	}
	for _, pf := range batch {
		if pf.Player < 0 || pf.Player >= len(a.players) {
			return fmt.Errorf("pose frame for player %d outside [0,%d)", pf.Player, len(a.players))
		}
	}
	for _, pf := range batch {
		a.observe(pf)
	}
	return nil
}

func (a *Aggregator) observe(pf pose.PoseFrame) {
	st := a.players[pf.Player]
	m := &st.metrics
	m.Frames++
	if pf.Miss {
		m.Misses++
	}

	point := func(frame pose.PoseFrame, l pose.Landmark) (Point, bool) {
		kp, ok := frame.Lookup(l, a.opts.MinConfidence)
		if !ok {
			return Point{}, false
		}
		return Point{X: kp.X, Y: kp.Y}, true
	}

	for _, j := range Joints {
		pa, okA := point(pf, j.A)
		pb, okB := point(pf, j.B)
		pc, okC := point(pf, j.C)
		if !okA || !okB || !okC {
			continue
		}
		if deg, ok := Angle(pa, pb, pc); ok {
			m.JointAngles[j.Name] = append(m.JointAngles[j.Name], Sample{Timestamp: pf.Timestamp, Value: deg})
		}
	}
	for _, p := range Pairs {
		pa, okA := point(pf, p.A)
		pb, okB := point(pf, p.B)
		if !okA || !okB {
			continue
		}
		m.Distances[p.Name] = append(m.Distances[p.Name], Sample{Timestamp: pf.Timestamp, Value: Distance(pa, pb)})
	}

	if st.prev != nil {
		dt := pf.Timestamp - st.prev.Timestamp
		for _, l := range VelocityLandmarks {
			sample := VelocitySample{Timestamp: pf.Timestamp}
			cur, okCur := point(pf, l)
			old, okOld := point(*st.prev, l)
			if okCur && okOld && dt > 0 {
				speed := Distance(cur, old) / dt
				sample.Speed = &speed
			}
			m.Velocities[l.String()] = append(m.Velocities[l.String()], sample)
		}
	}
	prev := pf
	st.prev = &prev
}

// Finalize freezes the aggregator and returns metrics for every slot. Later
// calls return fresh deep copies of the same result.
func (a *Aggregator) Finalize() map[int]PlayerMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.finalized {
		a.finalized = true
		a.result = make(map[int]PlayerMetrics, len(a.players))
		for i, st := range a.players {
			m := st.metrics
			m.Events = peakEvents(m.Velocities, a.opts.EventsPerMetric)
			a.result[i] = m
			st.prev = nil
		}
	}
	out := make(map[int]PlayerMetrics, len(a.result))
	for k, v := range a.result {
		out[k] = v.clone()
	}
	return out
}

// Finalized reports whether Finalize has been called.
func (a *Aggregator) Finalized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalized
}

// peakEvents keeps the k fastest samples of each velocity landmark, ties going
// to the earliest timestamp. Landmarks appear in VelocityLandmarks order.
func peakEvents(velocities map[string][]VelocitySample, k int) []Event {
	var events []Event
	for _, l := range VelocityLandmarks {
		var present []Sample
		for _, s := range velocities[l.String()] {
			if s.Speed != nil {
				present = append(present, Sample{Timestamp: s.Timestamp, Value: *s.Speed})
			}
		}
		sort.SliceStable(present, func(i, j int) bool {
			if present[i].Value != present[j].Value {
				return present[i].Value > present[j].Value
			}
			return present[i].Timestamp < present[j].Timestamp
		})
		label := "peak " + l.Label() + " velocity"
		for i := 0; i < k && i < len(present); i++ {
			events = append(events, Event{Timestamp: present[i].Timestamp, Label: label, Value: present[i].Value})
		}
	}
	return events
}
