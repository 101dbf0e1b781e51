// Package session turns AUTH tokens into bearer JWTs and authenticates
// requests against the tokens table. The JWT is only an envelope: expiry,
// revocation and device binding are decided per request from the stored
// token row.
package session
