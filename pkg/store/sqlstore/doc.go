// Package sqlstore is the concrete, embedded relational implementation of
// store.Store. It runs against a single modernc.org/sqlite database file (or
// an in-memory DSN for tests), which is enough for a single active
// controller instance — the Non-goal section of the specification assumes
// exactly that, so there is no distributed-transaction layer here, just
// *sql.DB's own BEGIN/COMMIT/ROLLBACK.
//
// Reads that need more than a plain WHERE/ORDER BY (provider tokens by
// currency, NAT routings by provider) are built with doug-martin/goqu so the
// SQL stays structurally correct as columns change; the one query that
// genuinely needs a correlated subquery — "artifacts whose latest Touch is
// in state S" — is hand-written, since expressing a correlated subquery
// through goqu's builder would be less readable than the SQL it produces.
package sqlstore
