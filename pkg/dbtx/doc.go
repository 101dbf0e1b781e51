// Package dbtx wraps units of work in serializable pgx transactions with
// bounded retry on concurrency-conflict aborts.
//
// The work function receives a TxContext and must finish with an explicit
// Commit; any error path rolls back. Serialization failures (SQLSTATE 40001,
// 40P01) are retried up to ten times with a randomized delay before
// surfacing as sql_concurrent. The work function must be idempotent up to
// its commit: no non-transactional side effects before then.
package dbtx
