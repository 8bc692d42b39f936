package waiter

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"sdrelay/pkg/notify"
)

// Launcher spawns the externally supplied container-run command line as
// an opaque child process, inheriting the operator's standard streams.
// It does not interpret container-runtime semantics; the rest of the
// waiter relies only on the child's exit code and its ability to be
// signaled.
type Launcher struct {
	cmd    *exec.Cmd
	logger *log.Logger
}

// NewLauncher builds the launcher for the given command line.
func NewLauncher(argv []string, logger *log.Logger) *Launcher {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = scrubEnv(os.Environ())

	return &Launcher{cmd: cmd, logger: logger}
}

// Start launches the container command.
func (l *Launcher) Start() error {
	if err := l.cmd.Start(); err != nil {
		return fmt.Errorf("start container command %s: %w", l.cmd.Path, err)
	}
	l.logger.Printf("container command started (pid %d)", l.cmd.Process.Pid)
	return nil
}

// Signal delivers a signal to the child.
func (l *Launcher) Signal(sig os.Signal) error {
	return l.cmd.Process.Signal(sig)
}

// Kill force-terminates the child.
func (l *Launcher) Kill() error {
	return l.cmd.Process.Kill()
}

// Wait blocks until the child exits and returns its exit code, mapping
// a signal death to the conventional 128+signal.
func (l *Launcher) Wait() int {
	err := l.cmd.Wait()
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}

	l.logger.Printf("wait error: %v", err)
	return 1
}

// scrubbedVars are the real supervisor's notification variables. They
// must not leak into the container command: the waiter itself is the
// process that answers the supervisor, and a runtime client that
// happens to speak sd_notify would otherwise answer in its place.
var scrubbedVars = map[string]bool{
	notify.EnvSocket: true,
	"WATCHDOG_USEC":  true,
	"WATCHDOG_PID":   true,
}

// scrubEnv filters the supervisor-facing variables out of the child's
// environment.
func scrubEnv(env []string) []string {
	scrubbed := make([]string, 0, len(env))
	for _, entry := range env {
		if scrubbedVars[envKey(entry)] {
			continue
		}
		scrubbed = append(scrubbed, entry)
	}
	return scrubbed
}

// envKey extracts the key from a "KEY=VALUE" environment entry.
func envKey(entry string) string {
	if idx := strings.IndexByte(entry, '='); idx >= 0 {
		return entry[:idx]
	}
	return entry
}
