// Package reconciler runs a slow, independent check loop alongside the
// scheduler: it never mutates an artifact's state, only looks for
// violations of the invariants named in the data model (public-IP
// uniqueness per provider) and for appliances that have sat in a
// transient "pre_*" state far longer than any agent should take,
// surfacing both as metrics and log warnings for an operator to act on.
package reconciler
