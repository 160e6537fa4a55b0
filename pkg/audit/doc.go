// Package audit broadcasts every Touch the scheduler commits to any
// number of subscribers, without being on the critical path of applying
// it: the store row is the durable audit trail, this package is only a
// live fan-out for observers (a future CLI tail command, an operator
// dashboard) that want to watch appliances move through state without
// polling the database.
package audit
