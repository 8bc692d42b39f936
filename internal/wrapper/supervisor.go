package wrapper

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"syscall"

	"sdrelay/pkg/notify"
)

// Supervisor spawns the target application with the emulated socket
// path injected through NOTIFY_SOCKET, waits for it, and reports its
// termination status. The target needs no awareness it is being
// relayed.
type Supervisor struct {
	cmd    *exec.Cmd
	logger *log.Logger
}

// NewSupervisor builds the supervisor for the given command line. The
// target inherits the wrapper's standard streams and environment, with
// NOTIFY_SOCKET pointed at the emulated socket.
func NewSupervisor(argv []string, socketPath string, logger *log.Logger) *Supervisor {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), notify.EnvSocket+"="+socketPath)

	return &Supervisor{cmd: cmd, logger: logger}
}

// Start launches the target process.
func (s *Supervisor) Start() error {
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start target %s: %w", s.cmd.Path, err)
	}
	s.logger.Printf("target started (pid %d)", s.cmd.Process.Pid)
	return nil
}

// Signal delivers a signal to the target process. Directed delivery,
// not process-group inheritance, so external stop requests propagate
// portably.
func (s *Supervisor) Signal(sig os.Signal) error {
	if s.cmd.Process == nil {
		return fmt.Errorf("target not started")
	}
	return s.cmd.Process.Signal(sig)
}

// Kill force-terminates the target.
func (s *Supervisor) Kill() error {
	if s.cmd.Process == nil {
		return fmt.Errorf("target not started")
	}
	return s.cmd.Process.Kill()
}

// Wait blocks until the target exits and returns its exit code. A
// signal death maps to the conventional 128+signal so the container's
// own exit status still reflects the real outcome.
func (s *Supervisor) Wait() int {
	err := s.cmd.Wait()
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

	s.logger.Printf("wait error: %v", err)
	return 1
}
