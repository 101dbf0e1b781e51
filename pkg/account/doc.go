// Package account implements signup, login with a mandatory second factor,
// session logout, profile updates, and the password and email change flows.
//
// Every mutating operation runs inside one serializable transaction and is
// retried on serialization failures. Failed-login accounting is committed
// even when the operation itself fails, so lockout cannot be raced away.
// Notifications are fire-and-forget and never affect the request outcome.
package account
