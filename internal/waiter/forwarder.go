package waiter

import (
	"fmt"
	"log"
	"strconv"

	"sdrelay/internal/channel"
	"sdrelay/pkg/notify"
)

// Forwarder replays decoded notifications to the real supervisor
// socket. Every datagram is constructed fresh and sent from this
// process, so the kernel stamps it with the waiter's credentials — the
// identity the supervisor is actually tracking for the service — and
// the sender-identity check passes without relaxing the access policy.
//
// An empty socket path means the run is unsupervised (manual or test
// invocation): every send degrades to a logged no-op success.
type Forwarder struct {
	socketPath string
	logger     *log.Logger
	verbose    bool
}

// NewForwarder creates a forwarder toward the given supervisor socket,
// normally the waiter's own NOTIFY_SOCKET value.
func NewForwarder(socketPath string, logger *log.Logger, verbose bool) *Forwarder {
	return &Forwarder{socketPath: socketPath, logger: logger, verbose: verbose}
}

// Supervised reports whether a real supervisor socket is configured.
func (f *Forwarder) Supervised() bool {
	return f.socketPath != ""
}

// Ready announces readiness, carrying the last-known status text and
// main pid when present.
func (f *Forwarder) Ready(state channel.RelayState) error {
	pairs := map[string]string{notify.KeyReady: "1"}
	if state.Status != "" {
		pairs[notify.KeyStatus] = state.Status
	}
	if state.MainPID > 0 {
		pairs[notify.KeyMainPID] = strconv.Itoa(state.MainPID)
	}
	return f.send(notify.MakeRecord(pairs).Encode())
}

// Status forwards an updated status text.
func (f *Forwarder) Status(text string) error {
	pairs := map[string]string{notify.KeyStatus: text}
	return f.send(notify.MakeRecord(pairs).Encode())
}

// Watchdog forwards one watchdog ping.
func (f *Forwarder) Watchdog() error {
	pairs := map[string]string{notify.KeyWatchdog: "1"}
	return f.send(notify.MakeRecord(pairs).Encode())
}

func (f *Forwarder) send(payload []byte) error {
	if f.socketPath == "" {
		if f.verbose {
			f.logger.Printf("no supervisor socket, dropping notification %q", payload)
		}
		return nil
	}
	if f.verbose {
		f.logger.Printf("notifying supervisor: %q", payload)
	}
	if err := notify.Send(f.socketPath, payload); err != nil {
		return fmt.Errorf("forward notification: %w", err)
	}
	return nil
}
