// Package accounterr defines the closed set of domain errors surfaced by the
// account service.
//
// Every service operation returns either a plain wrapped error (infrastructure
// failures, for logs) or an *Error carrying one of the codes declared here.
// The HTTP boundary maps codes to a stable status and description; raw
// messages and details stay in logs.
//
// Usage:
//
//	return accounterr.New(accounterr.ErrCodeBadCredentials).WithDetail("email", email)
//
//	if accounterr.IsCode(err, accounterr.ErrCodeTokenExpired) { ... }
package accounterr
