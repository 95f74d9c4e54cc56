// Package pose turns sampled frames into per-player body keypoints.
//
// A Detector returns raw body detections for one frame. The Extractor keeps a
// Tracker so detections map onto stable player slots across frames: the first
// frame with detections assigns slots by bounding-box area, and later frames
// match by nearest centroid. Frames where a slot has no detection produce a
// PoseFrame flagged as a miss rather than an error.
//
// WorkerDetector runs a pose model in a subprocess speaking length-prefixed
// msgpack over stdin/stdout; Pool shares a bounded set of such workers across
// every run in the process.
package pose
