// Package report turns finalized player metrics into role-specific narrative
// reports through a text generation service.
//
// Each audience has a fixed section schema. The Synthesizer builds a prompt
// from the metrics and an optional transcript excerpt, asks the Generator for
// text, and parses the reply into sections. Replies missing a section and
// transient generation failures are retried with capped exponential backoff.
// When the budget runs out Synthesize returns a placeholder Artifact flagged
// failed together with an error marked services.ErrGeneration, so the caller
// can still persist something for the branch.
package report
