// Package waiter implements the host-side half of the readiness relay.
// It launches the container-run command, polls the shared state channel
// until readiness, a terminal state, or the deadline, and replays the
// readiness notification to the real supervisor under its own process
// identity. After readiness it lives as long as the container command
// does and propagates its exit code.
package waiter

import (
	"context"
	"log"
	"os"
	"syscall"
	"time"

	"sdrelay/internal/channel"
	"sdrelay/pkg/notify"
)

// Exit codes of the waiter binary. Early exit propagates the container
// command's own non-zero code (zero maps to 1 so that 0 always means
// "readiness was forwarded").
const (
	ExitSetup     = 1
	ExitTimeout   = 75 // EX_TEMPFAIL: no readiness within the deadline
	ExitForwarder = 69 // EX_UNAVAILABLE: supervisor socket present, send failed
)

// Run executes the waiter for the given container command line and
// returns the process exit code.
func Run(cfg Config, argv []string) int {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[waiter] ", log.LstdFlags|log.Lmsgprefix)
	}

	if err := os.MkdirAll(cfg.SharedDir, 0755); err != nil {
		logger.Printf("create shared directory %s: %v", cfg.SharedDir, err)
		return ExitSetup
	}
	// The container side writes into this directory through the volume
	// mount, possibly as a different uid.
	if err := os.Chmod(cfg.SharedDir, 0755); err != nil {
		logger.Printf("warning: could not chmod shared directory: %v", err)
	}

	store := channel.NewStore(cfg.SharedDir)
	// An earlier run may have left its final snapshot behind. Reading
	// it now would replay that run's outcome onto this one, so the
	// channel starts empty.
	if err := store.Clear(); err != nil {
		logger.Printf("%v", err)
		return ExitSetup
	}

	forwarder := NewForwarder(os.Getenv(notify.EnvSocket), logger, cfg.Verbose)
	if !forwarder.Supervised() {
		logger.Printf("%s not set, running unsupervised", notify.EnvSocket)
	}

	var stopper *ContainerStopper
	if cfg.ContainerName != "" {
		var err error
		stopper, err = NewContainerStopper(cfg.ContainerName, logger)
		if err != nil {
			logger.Printf("warning: %v (falling back to signaling the child)", err)
		}
	}

	launcher := NewLauncher(argv, logger)
	if err := launcher.Start(); err != nil {
		logger.Printf("%v", err)
		return ExitSetup
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := NewWatcher(store, cfg.PollInterval, logger, cfg.Verbose).Run(ctx)

	waitCh := make(chan int, 1)
	go func() { waitCh <- launcher.Wait() }()

	deadline := time.NewTimer(cfg.Timeout)
	defer deadline.Stop()

	readySent := false
	var lastStatus string
	var lastWatchdog uint64

	for {
		select {
		case code := <-waitCh:
			if readySent {
				// Normal end of life of the service run.
				logger.Printf("container command exited with code %d", code)
				return code
			}
			logger.Printf("container command exited with code %d before readiness", code)
			return earlyExitCode(code)

		case state, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}

			if state.Terminal && !state.Ready && !readySent {
				// The target died inside the container before ever
				// signaling ready. Distinct from a timeout: the
				// application failed, it did not hang.
				logger.Printf("target exited with code %d before readiness", state.ExitCode)
				terminate(ctx, launcher, stopper, waitCh, cfg.StopGrace, logger)
				return earlyExitCode(state.ExitCode)
			}

			if state.Ready && !readySent {
				if err := forwarder.Ready(state); err != nil {
					// The supervisor is waiting on an acknowledgment
					// that will never come; fail the whole run.
					logger.Printf("%v", err)
					terminate(ctx, launcher, stopper, waitCh, cfg.StopGrace, logger)
					return ExitForwarder
				}
				logger.Printf("readiness forwarded to supervisor")
				readySent = true
				lastStatus = state.Status
				lastWatchdog = state.Watchdog
				deadline.Stop()
				continue
			}

			if readySent {
				forwardFollowups(forwarder, state, &lastStatus, &lastWatchdog, logger)
			}

		case <-deadline.C:
			logger.Printf("timed out after %v waiting for readiness", cfg.Timeout)
			terminate(ctx, launcher, stopper, waitCh, cfg.StopGrace, logger)
			return ExitTimeout
		}
	}
}

// earlyExitCode maps a pre-readiness exit code to the waiter's own.
// Zero is reserved for the success path, so a clean-but-premature exit
// still reports failure.
func earlyExitCode(code int) int {
	if code == 0 {
		return 1
	}
	return code
}

// forwardFollowups relays post-readiness state changes: status text
// updates and watchdog pings. Failures here are logged but not fatal;
// the readiness acknowledgment has already been delivered.
func forwardFollowups(forwarder *Forwarder, state channel.RelayState, lastStatus *string, lastWatchdog *uint64, logger *log.Logger) {
	if state.Status != "" && state.Status != *lastStatus {
		if err := forwarder.Status(state.Status); err != nil {
			logger.Printf("warning: %v", err)
		}
		*lastStatus = state.Status
	}
	if state.Watchdog > *lastWatchdog {
		if err := forwarder.Watchdog(); err != nil {
			logger.Printf("warning: %v", err)
		}
		*lastWatchdog = state.Watchdog
	}
}

// terminate brings the container child down: a Docker-level stop when
// the container is named, then a signal to the child with escalation
// to SIGKILL after the grace period. It returns once the child has
// been reaped.
func terminate(ctx context.Context, launcher *Launcher, stopper *ContainerStopper, waitCh <-chan int, grace time.Duration, logger *log.Logger) {
	if stopper != nil {
		stopCtx, cancel := context.WithTimeout(ctx, grace+5*time.Second)
		if err := stopper.Stop(stopCtx, grace); err != nil {
			logger.Printf("warning: %v", err)
		}
		cancel()
	}

	if err := launcher.Signal(syscall.SIGTERM); err != nil {
		// Likely already exited; the wait below will confirm.
		logger.Printf("signal container command: %v", err)
	}

	select {
	case <-waitCh:
		return
	case <-time.After(grace):
		logger.Printf("container command unresponsive after %v, killing", grace)
	}

	launcher.Kill()
	<-waitCh
}
