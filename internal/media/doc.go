// Package media samples decoded frames from a match video.
//
// A FrameSource opens one decoding pass at a fixed sampling interval; the
// Sampler drives that pass lazily, skipping corrupt frames, enforcing strictly
// increasing timestamps, and escalating stalls or runs of bad frames to
// services.ErrMedia. FFmpegSource is the production source; tests supply their
// own FrameSource.
package media
