// Package token is the token engine: it creates, reads and consumes the
// typed credentials backing sessions, password resets, two-factor login and
// email changes.
//
// One live token per (user, type) is the steady state: minting a new token of
// a type deletes the user's prior tokens of that type. AUTH tokens are the
// exception, one per active session. Sensitive values (TOTP secrets, email
// pins) are stored encrypted under a dedicated cipher key; expiry is always
// computed from timestamps plus a type-specific TTL at verification time.
package token
