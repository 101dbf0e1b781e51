// Package utils provides small stateless helpers shared across the
// simple-account packages.
//
// It covers SQL null type conversions, email normalization, secure random pin
// generation using crypto/rand, empty-string filtering for partial updates,
// and fire-and-forget scheduling for post-commit side effects.
package utils
