// Package transcript supplies the optional spoken-audio transcript that is
// embedded into report prompts.
//
// A transcript comes either from a text file supplied by the operator or from
// a WhisperX run over the video's audio track. Transcripts are advisory: Load
// logs failures and returns an empty string so analysis continues without one.
package transcript
