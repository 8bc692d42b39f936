// Package channel implements the shared-directory state channel that
// carries notification state across the container/host boundary. The
// container side is the single writer; the host side polls read-only.
package channel

import (
	"time"

	"sdrelay/pkg/notify"
)

// stateVersion tags the on-disk snapshot layout.
const stateVersion = 1

// RelayState is the cumulative view of everything observed for one run.
// Seq increases by exactly one per mutation, so a reader that sees a
// given Seq has seen a fully-written snapshot and can detect progress.
type RelayState struct {
	Version  int       `json:"version"`
	Seq      uint64    `json:"seq"`
	Ready    bool      `json:"ready"`
	Status   string    `json:"status,omitempty"`
	MainPID  int       `json:"main_pid,omitempty"`
	Errno    int       `json:"errno,omitempty"`
	Watchdog uint64    `json:"watchdog,omitempty"`
	BusError string    `json:"bus_error,omitempty"`
	Terminal bool      `json:"terminal"`
	ExitCode int       `json:"exit_code"`
	Updated  time.Time `json:"updated"`
}

// NewState returns the initial (nothing observed yet) state.
func NewState() *RelayState {
	return &RelayState{Version: stateVersion}
}

func (s *RelayState) bump() {
	s.Seq++
	s.Updated = time.Now()
}

// Merge folds one decoded notification record into the state.
// Readiness is sticky: once set it never clears. Status, main pid,
// errno and bus error are overwritten by the latest non-empty value.
// Watchdog pings increment a counter and touch nothing else.
func (s *RelayState) Merge(rec notify.Record) {
	if rec.Ready() {
		s.Ready = true
	}
	if status := rec.Status(); status != "" {
		s.Status = status
	}
	if pid, ok := rec.MainPID(); ok {
		s.MainPID = pid
	}
	if errno, ok := rec.Errno(); ok {
		s.Errno = errno
	}
	if rec.Watchdog() {
		s.Watchdog++
	}
	if busErr := rec.BusError(); busErr != "" {
		s.BusError = busErr
	}
	s.bump()
}

// MarkTerminal records that the supervised process has exited.
// Readiness is left untouched so the host can distinguish "exited after
// becoming ready" from "exited before ever becoming ready".
func (s *RelayState) MarkTerminal(exitCode int) {
	s.Terminal = true
	s.ExitCode = exitCode
	s.bump()
}
