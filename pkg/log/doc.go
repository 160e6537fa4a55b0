// Package log provides structured logging built on zerolog: a global
// Logger configured once via Init, plus WithComponent for a
// component-scoped child logger so call sites don't repeat the same Str
// field on every call.
package log
