// Package metrics turns per-frame pose observations into per-player motion
// series: joint angles, landmark pair distances, landmark velocities, and a
// short list of peak-velocity events.
//
// An Aggregator consumes PoseFrame batches in timestamp order and is finalized
// exactly once after the frame stream ends. Missed detections and
// low-confidence keypoints leave gaps in the series; nothing is interpolated.
package metrics
