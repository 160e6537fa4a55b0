// Package gateway is the HTTP/XML client to the remote IaaS provider.
// Every outbound call goes through one provider-scoped circuit breaker
// (sony/gobreaker) so a wedged provider trips open rather than piling up
// goroutines behind slow sockets, and idempotent GETs additionally retry
// through cenkalti/backoff on transient transport errors. POST and DELETE
// calls never retry on an HTTP-level error status: the provider may have
// already accepted the request, and retrying risks a duplicate vApp
// compose or a double NAT rule.
package gateway
