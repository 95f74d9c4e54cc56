// Package llm provides an OpenRouter-compatible chat completion client used to
// write report narratives.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Generate: send one prompt, receive the model's text.
// Client.HealthCheck: verify API key and model availability.
//
// # Error Classification
//
// The client makes exactly one request per call; retrying is the caller's
// job. Failures worth retrying (HTTP 408/429/5xx, network errors, empty
// completions) are wrapped with services.ErrTransient, timeouts with
// services.ErrTimeout. Other HTTP failures and
// a missing API key are permanent. *StatusError exposes RetryAfter when the
// server sent a Retry-After header. Context cancellation is returned unwrapped.
package llm
