// Package message defines the fixed set of events agents emit back to the
// scheduler and the type-keyed dispatcher that routes each one to the
// handler registered for it. A message's Go type stands in for what the
// system this was distilled from would have resolved with
// functools.singledispatch: Dispatch looks up reflect.TypeOf(msg), never a
// string tag or a type switch, so registering a handler for a new message
// type never requires touching the dispatcher itself.
package message
