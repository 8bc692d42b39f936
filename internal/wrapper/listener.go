package wrapper

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync/atomic"
	"time"

	"sdrelay/internal/channel"
	"sdrelay/pkg/notify"
)

// datagramBufSize bounds a single notification payload. sd_notify
// messages are a handful of short lines; 4k matches what real senders
// produce with room to spare.
const datagramBufSize = 4096

// Listener owns the emulated notification socket. It receives
// datagrams from the target application, folds them into the relay
// state, and persists every update through the shared-state store.
// It is the only writer of the store while its loop runs.
type Listener struct {
	store   *channel.Store
	state   *channel.RelayState
	conn    *net.UnixConn
	logger  *log.Logger
	verbose bool

	stopping atomic.Bool
	done     chan struct{} // closed when the receive loop returns
	fatal    chan error    // persistence failures; relay is useless without the store
}

// NewListener creates a listener over the given store. Bind must be
// called before the target process is spawned, or an early notification
// is lost.
func NewListener(store *channel.Store, logger *log.Logger, verbose bool) *Listener {
	return &Listener{
		store:   store,
		state:   channel.NewState(),
		logger:  logger,
		verbose: verbose,
		done:    make(chan struct{}),
		fatal:   make(chan error, 1),
	}
}

// Bind creates the datagram socket inside the shared directory and
// enables credential passing so the sender's identity can be logged.
func (l *Listener) Bind() error {
	path := l.store.SocketPath()
	os.Remove(path)

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("bind notification socket %s: %w", path, err)
	}

	// The target may run as a different uid inside the container.
	if err := os.Chmod(path, 0666); err != nil {
		l.logger.Printf("warning: could not chmod socket: %v", err)
	}

	if err := enablePassCred(conn); err != nil {
		l.logger.Printf("warning: could not enable credential passing: %v", err)
	}

	l.conn = conn
	return nil
}

// SocketPath returns the bound socket path.
func (l *Listener) SocketPath() string {
	return l.store.SocketPath()
}

// Fatal delivers at most one unrecoverable error from the receive loop.
func (l *Listener) Fatal() <-chan error {
	return l.fatal
}

// Run executes the receive loop until Stop drains it or a persistence
// failure occurs. Malformed datagrams are logged and dropped, never
// fatal.
func (l *Listener) Run() {
	defer close(l.done)

	buf := make([]byte, datagramBufSize)
	oob := make([]byte, credOOBSpace())

	for {
		n, oobn, _, _, err := l.conn.ReadMsgUnix(buf, oob)
		if err != nil {
			if l.stopping.Load() {
				return // drain window elapsed or socket closed
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Printf("socket receive error: %v", err)
			continue
		}

		if l.verbose {
			if cred := parseSenderCreds(oob[:oobn]); cred != nil {
				l.logger.Printf("datagram from pid=%d uid=%d (%d bytes)", cred.Pid, cred.Uid, n)
			} else {
				l.logger.Printf("datagram received (%d bytes)", n)
			}
		}

		rec, skipped := notify.ParseDatagram(buf[:n])
		if skipped > 0 {
			l.logger.Printf("dropped %d malformed line(s) in notification datagram", skipped)
		}
		if rec.Len() == 0 && len(rec.Extra()) == 0 {
			continue
		}

		l.state.Merge(rec)
		if err := l.store.Write(l.state); err != nil {
			l.fatal <- fmt.Errorf("persist relay state: %w", err)
			return
		}

		if l.verbose {
			l.logger.Printf("state updated: seq=%d ready=%v status=%q", l.state.Seq, l.state.Ready, l.state.Status)
		}
	}
}

// Stop drains the receive loop for the given window, then blocks until
// the loop has returned and closes the socket. After Stop returns, the
// caller may safely take over the state for the final terminal write.
func (l *Listener) Stop(drain time.Duration) {
	l.stopping.Store(true)
	l.conn.SetReadDeadline(time.Now().Add(drain))
	<-l.done
	l.conn.Close()
}

// State hands over the accumulated state. Only valid once the receive
// loop has stopped.
func (l *Listener) State() *channel.RelayState {
	return l.state
}
