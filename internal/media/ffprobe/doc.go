// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect executes ffprobe and returns a Result; helpers expose the primary
// video stream, its frame rate, and the container duration used to size
// sampling progress.
package ffprobe
