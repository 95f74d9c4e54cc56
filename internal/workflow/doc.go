// Package workflow drives one analysis run from a video to persisted reports.
//
// A Runner moves each run through INIT, SAMPLING, POSE_EXTRACTION,
// AGGREGATING, SYNTHESIZING and DONE, with FAILED reachable from any
// non-terminal state. Sampling, pose extraction and aggregation run as a
// pipeline joined by bounded channels holding one item each. Synthesis waits
// behind a hard barrier: it starts only after the sampler is exhausted and the
// aggregator has been finalized. Synthesis then fans out one branch per
// (player, role, language) request across a bounded worker pool, with a
// semaphore limiting in-flight generation calls.
//
// A failed branch never aborts its siblings. A run fails when sampling or
// extraction hits a fatal error, when every branch fails, or when it is
// cancelled; artifacts already written stay on disk.
//
// Runs are independent and may execute concurrently on one Runner. The pose
// Detector supplied in Dependencies is shared, so a process-wide pose.Pool
// bounds pose extraction across all runs.
package workflow
