// Package wrapper implements the container-side half of the readiness
// relay. It binds an emulated notification socket inside the shared
// directory, spawns the target application with NOTIFY_SOCKET pointed
// at it, folds every received datagram into a persisted state snapshot,
// and exits with the target's own exit code.
package wrapper

import (
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	"sdrelay/internal/channel"
)

// DefaultSharedDir is where the shared volume is mounted inside the
// container.
const DefaultSharedDir = "/shared"

// EnvVerbose toggles verbose logging when the -verbose flag is absent.
const EnvVerbose = "SDRELAY_VERBOSE"

// BoolEnv interprets a boolean-like environment variable.
func BoolEnv(name string) bool {
	switch os.Getenv(name) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

const (
	// drainWindow catches a final notification sent while the target
	// is shutting down.
	drainWindow = 200 * time.Millisecond

	// fatalGrace is how long a target gets after SIGTERM when the
	// relay itself has failed and must bring the run down.
	fatalGrace = 10 * time.Second
)

// Config holds the wrapper configuration.
type Config struct {
	SharedDir string   // shared directory (default /shared)
	Args      []string // target command line, argv[0] is the binary
	Verbose   bool
	Logger    *log.Logger
}

// Run executes the wrapper and returns the process exit code.
func Run(cfg Config) int {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[wrapper] ", log.LstdFlags|log.Lmsgprefix)
	}
	if cfg.SharedDir == "" {
		cfg.SharedDir = DefaultSharedDir
	}

	store, err := openChannel(cfg.SharedDir)
	if err != nil {
		logger.Printf("%v", err)
		return 1
	}
	if cfg.Verbose {
		logger.Printf("shared directory %s, socket %s", store.Dir(), store.SocketPath())
	}

	listener := NewListener(store, logger, cfg.Verbose)

	// Bind before spawn: a notification sent by the target during its
	// own startup must find the socket already receiving.
	if err := listener.Bind(); err != nil {
		logger.Printf("%v", err)
		return 1
	}
	go listener.Run()

	sup := NewSupervisor(cfg.Args, listener.SocketPath(), logger)
	if err := sup.Start(); err != nil {
		logger.Printf("%v", err)
		listener.Stop(0)
		return 1
	}

	stopForwarding := forwardSignals(sup, logger)
	defer stopForwarding()

	waitCh := make(chan int, 1)
	go func() { waitCh <- sup.Wait() }()

	var code int
	select {
	case err := <-listener.Fatal():
		// The relay is useless without its store. Bring the target
		// down and fail the whole container.
		logger.Printf("fatal: %v", err)
		if sigErr := sup.Signal(syscall.SIGTERM); sigErr != nil {
			logger.Printf("warning: could not signal target: %v", sigErr)
		}
		select {
		case <-waitCh:
		case <-time.After(fatalGrace):
			sup.Kill()
			<-waitCh
		}
		return 1

	case code = <-waitCh:
		logger.Printf("target exited with code %d", code)
	}

	// Last chance for a notification sent during target shutdown, then
	// the listener's final write is guaranteed flushed before ours.
	listener.Stop(drainWindow)

	state := listener.State()
	state.MarkTerminal(code)
	if err := store.Write(state); err != nil {
		logger.Printf("fatal: persist terminal state: %v", err)
		if code == 0 {
			return 1
		}
	}

	return code
}

// openChannel creates the shared directory, the store over it, and the
// initial empty snapshot, so the host can tell "relay alive, nothing
// observed yet" apart from "no snapshot yet".
func openChannel(dir string) (*channel.Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create shared directory %s: %w", dir, err)
	}
	store := channel.NewStore(dir)
	if err := store.Write(channel.NewState()); err != nil {
		return nil, fmt.Errorf("write initial state: %w", err)
	}
	return store, nil
}
