// Package preflight provides readiness checks for the external tools,
// services and filesystem paths courtside depends on.
//
// These checks run in two contexts:
//   - The analyze command calls RunAll before sampling starts so a missing
//     binary or unwritable directory fails fast instead of mid-run.
//   - The CLI "courtside preflight" command additionally checks LLM
//     reachability and prints every result.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
