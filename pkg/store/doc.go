// Package store defines the persistence contract the reconciliation engine
// depends on. The interface is deliberately narrow and eager: every method
// either returns a fully-loaded value or commits a fully-formed change.
// There are no lazy collections and no hidden queries behind field access,
// unlike the ORM-style entity graphs of the system this was distilled from.
//
// Exactly one goroutine — the scheduler — ever calls a mutating method on a
// Store; agent goroutines only read from it, looking up resources,
// subscriptions and providers while they process a Job.
// This is what lets a single *sql.DB connection, transacted per dispatched
// message, stand in for the kind of distributed-transaction machinery a
// multi-writer design would otherwise need.
package store
