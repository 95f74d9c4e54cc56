// Package overlay renders tracked poses onto sampled frames and encodes them
// into an annotated video.
//
// Draw paints each player's skeleton onto a copy of a frame in that player's
// colour. FFmpegWriter feeds the painted frames to an ffmpeg encoder at the
// sampling rate, so the output plays back one sampled frame per interval.
package overlay
