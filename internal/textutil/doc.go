// Package textutil provides text helpers for filename sanitization and
// bounded excerpts.
package textutil
