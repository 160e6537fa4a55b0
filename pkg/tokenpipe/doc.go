// Package tokenpipe reads provider credential records off the named pipe
// described in the external interfaces section: one FIFO per provider,
// fed by a separate session/token-acquisition process. There is no
// ecosystem library for named-pipe creation or line framing worth adding
// here — syscall.Mkfifo and a bufio.Scanner are the whole of it, so this
// package leans on the standard library rather than a third-party
// dependency (see DESIGN.md).
package tokenpipe
