package waiter

import (
	"slices"
	"syscall"
	"testing"
)

func TestScrubEnvDropsSupervisorVars(t *testing.T) {
	env := []string{
		"PATH=/usr/bin",
		"NOTIFY_SOCKET=/run/systemd/notify",
		"WATCHDOG_USEC=30000000",
		"WATCHDOG_PID=123",
		"HOME=/root",
	}

	scrubbed := scrubEnv(env)
	want := []string{"PATH=/usr/bin", "HOME=/root"}
	if !slices.Equal(scrubbed, want) {
		t.Errorf("scrubEnv = %v, want %v", scrubbed, want)
	}
}

func TestLauncherWaitExitCode(t *testing.T) {
	l := NewLauncher([]string{"sh", "-c", "exit 9"}, testLogger())
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := l.Wait(); got != 9 {
		t.Errorf("Wait() = %d, want 9", got)
	}
}

func TestLauncherSignal(t *testing.T) {
	l := NewLauncher([]string{"sleep", "30"}, testLogger())
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := l.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	want := 128 + int(syscall.SIGTERM)
	if got := l.Wait(); got != want {
		t.Errorf("Wait() = %d, want %d", got, want)
	}
}
