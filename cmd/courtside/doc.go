// Package main hosts the courtside CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the analysis
// capabilities (ffmpeg frame source, pose worker pool, generation client,
// run store, notifiers) and hands them to the workflow runner. Run history
// and preflight checks are surfaced as dedicated commands.
//
// Keep this package thin: behaviour belongs in the internal packages and is
// only wired and rendered here.
package main
