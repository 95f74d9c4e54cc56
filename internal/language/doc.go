// Package language owns the set of report languages, their display names, and
// the localized report titles per audience role.
//
// Inputs are normalized through golang.org/x/text/language so tags such as
// "hi-IN" or three-letter codes resolve to the same two-letter code used in
// artifact names.
package language
