package wrapper

import (
	"testing"

	"sdrelay/internal/channel"
)

func TestRunPropagatesTargetExitAndPersistsTerminalState(t *testing.T) {
	dir := t.TempDir()

	code := Run(Config{
		SharedDir: dir,
		Args:      []string{"sh", "-c", "exit 7"},
		Logger:    testLogger(),
	})
	if code != 7 {
		t.Fatalf("Run = %d, want 7", code)
	}

	state, err := channel.NewStore(dir).Read()
	if err != nil || state == nil {
		t.Fatalf("Read: %+v, %v", state, err)
	}
	if !state.Terminal || state.ExitCode != 7 {
		t.Errorf("terminal state = %+v", state)
	}
	if state.Ready {
		t.Error("Ready = true for a target that never notified")
	}
}

func TestRunTargetCanNotifyThroughSocket(t *testing.T) {
	dir := t.TempDir()

	codeCh := make(chan int, 1)
	go func() {
		codeCh <- Run(Config{
			SharedDir: dir,
			Args:      []string{"sh", "-c", "sleep 1"},
			Logger:    testLogger(),
		})
	}()

	store := channel.NewStore(dir)
	waitForSocket(t, store.SocketPath())

	// Simulate the target's sd_notify call while it runs.
	sendDatagram(t, store.SocketPath(), "READY=1\nSTATUS=starting done")

	state := waitForState(t, store, func(s *channel.RelayState) bool { return s.Ready })
	if state.Status != "starting done" {
		t.Errorf("Status = %q", state.Status)
	}

	if code := <-codeCh; code != 0 {
		t.Errorf("Run = %d, want 0", code)
	}

	final, err := store.Read()
	if err != nil || final == nil {
		t.Fatalf("final Read: %+v, %v", final, err)
	}
	if !final.Terminal || !final.Ready {
		t.Errorf("final state = %+v", final)
	}
}
