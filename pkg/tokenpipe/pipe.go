package tokenpipe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/cloudhands/burst/pkg/log"
)

// Record is one credential record delivered over the pipe: the
// registration this login belongs to, the provider it authenticates
// against, and the username/password to exchange for a session header.
type Record struct {
	RegistrationUUID string
	ProviderName     string
	UserName         string
	UserPass         string
}

// Reader tails one provider's named pipe, decoding each line into a
// Record and delivering it on C. The pipe is created if it does not
// already exist.
type Reader struct {
	path string
	C    chan Record
}

// Open creates (if necessary) the FIFO at path and returns a Reader ready
// to Run.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := syscall.Mkfifo(path, 0o600); err != nil {
			return nil, fmt.Errorf("tokenpipe: mkfifo %s: %w", path, err)
		}
	}
	return &Reader{path: path, C: make(chan Record, 16)}, nil
}

// Run opens the pipe for reading and decodes lines until ctx.Done or the
// pipe's writer closes it, at which point it reopens the pipe and keeps
// reading — a FIFO read end sees EOF every time its last writer closes,
// which is routine, not a failure.
func (r *Reader) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			close(r.C)
			return
		default:
		}

		f, err := os.OpenFile(r.path, os.O_RDONLY, os.ModeNamedPipe)
		if err != nil {
			log.Logger.Error().Err(err).Str("path", r.path).Msg("tokenpipe: open pipe")
			return
		}
		r.drain(f, done)
		f.Close()

		select {
		case <-done:
			close(r.C)
			return
		default:
		}
	}
}

func (r *Reader) drain(f io.Reader, done <-chan struct{}) {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := decode(line)
		if err != nil {
			log.Logger.Warn().Err(err).Str("line", line).Msg("tokenpipe: malformed record")
			continue
		}
		select {
		case r.C <- rec:
		case <-done:
			return
		}
	}
}

// decode parses one pipe-delimited record:
// registration-uuid|provider-name|user-name|user-pass
func decode(line string) (Record, error) {
	parts := strings.SplitN(line, "|", 4)
	if len(parts) != 4 {
		return Record{}, fmt.Errorf("tokenpipe: expected 4 fields, got %d", len(parts))
	}
	return Record{
		RegistrationUUID: parts[0],
		ProviderName:     parts[1],
		UserName:         parts[2],
		UserPass:         parts[3],
	}, nil
}
