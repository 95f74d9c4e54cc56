package pose

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"courtside/internal/logging"
	"courtside/internal/media"
	"courtside/internal/services"
)

// detectAttempts bounds calls per frame when inference fails transiently.
const detectAttempts = 3

// Detector finds up to maxPersons bodies in a frame.
type Detector interface {
	Detect(ctx context.Context, frame media.Frame, maxPersons int) ([]Detection, error)
}

// Extractor converts frames into exactly one PoseFrame per player slot. It is
// stateful and must see frames in order; use one Extractor per run.
type Extractor struct {
	detector Detector
	players  int
	tracker  *Tracker
	logger   *slog.Logger

	gaps   atomic.Int64
	misses atomic.Int64
}

// NewExtractor returns an extractor tracking players slots.
func NewExtractor(detector Detector, players int, logger *slog.Logger) *Extractor {
	return &Extractor{
		detector: detector,
		players:  players,
		tracker:  NewTracker(players),
		logger:   logging.NewComponentLogger(logger, "pose"),
	}
}

// Extract runs detection on frame and returns one PoseFrame per slot.
// Timeouts and other retryable failures are retried before the frame is
// recorded as a miss for every slot; only context cancellation is returned
// as an error.
func (e *Extractor) Extract(ctx context.Context, frame media.Frame) ([]PoseFrame, error) {
	out := make([]PoseFrame, e.players)
	for i := range out {
		out[i] = PoseFrame{Player: i, FrameIndex: frame.Index, Timestamp: frame.Timestamp, Miss: true}
	}

	detections, err := e.detect(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.gaps.Add(1)
		e.misses.Add(int64(e.players))
		level := slog.LevelWarn
		if errors.Is(err, services.ErrDetectionGap) {
			level = slog.LevelDebug
		}
		logging.WithContext(ctx, e.logger).Log(ctx, level, "pose detection gap",
			logging.Args(
				logging.String(logging.FieldEventType, "detection_gap"),
				logging.Int("frame_index", frame.Index),
				logging.Error(err),
				logging.String(logging.FieldImpact, "frame recorded as a miss for every player"),
			)...,
		)
		return out, nil
	}

	assignment := e.tracker.Assign(detections)
	for slot, det := range assignment {
		if det < 0 {
			e.misses.Add(1)
			continue
		}
		kps := make(map[Landmark]Keypoint, len(detections[det].Keypoints))
		for _, kp := range detections[det].Keypoints {
			if kp.Landmark.Valid() {
				kps[kp.Landmark] = kp
			}
		}
		out[slot].Keypoints = kps
		out[slot].Miss = false
	}
	return out, nil
}

func (e *Extractor) detect(ctx context.Context, frame media.Frame) ([]Detection, error) {
	var err error
	for attempt := 1; attempt <= detectAttempts; attempt++ {
		var detections []Detection
		detections, err = e.detector.Detect(ctx, frame, e.players)
		if err == nil {
			return detections, nil
		}
		if ctx.Err() != nil || !services.IsRetryable(err) {
			return nil, err
		}
		logging.WithContext(ctx, e.logger).Debug("retrying pose detection",
			logging.String(logging.FieldEventType, "detection_retry"),
			logging.Int("frame_index", frame.Index),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
	}
	return nil, err
}

// Gaps returns the number of frames where detection failed outright.
func (e *Extractor) Gaps() int64 { return e.gaps.Load() }

// Misses returns the number of (frame, player) slots without a detection.
func (e *Extractor) Misses() int64 { return e.misses.Load() }
