package waiter

import (
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sdrelay/internal/channel"
)

// fakeSupervisor binds a datagram socket standing in for the real
// supervisor's notification socket.
type fakeSupervisor struct {
	path string
	conn *net.UnixConn
}

func newFakeSupervisor(t *testing.T) *fakeSupervisor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supervisor.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("bind fake supervisor: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &fakeSupervisor{path: path, conn: conn}
}

func (f *fakeSupervisor) receive(t *testing.T) string {
	t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 1024)
	n, err := f.conn.Read(buf)
	if err != nil {
		t.Fatalf("read from fake supervisor: %v", err)
	}
	return string(buf[:n])
}

func TestForwarderReadyPayload(t *testing.T) {
	sup := newFakeSupervisor(t)
	fwd := NewForwarder(sup.path, testLogger(), true)

	state := channel.RelayState{Ready: true, Status: "starting done", MainPID: 42}
	if err := fwd.Ready(state); err != nil {
		t.Fatalf("Ready: %v", err)
	}

	payload := sup.receive(t)
	for _, want := range []string{"READY=1", "STATUS=starting done", "MAINPID=42"} {
		if !strings.Contains(payload, want) {
			t.Errorf("payload %q missing %q", payload, want)
		}
	}
}

func TestForwarderReadyOmitsAbsentFields(t *testing.T) {
	sup := newFakeSupervisor(t)
	fwd := NewForwarder(sup.path, testLogger(), false)

	if err := fwd.Ready(channel.RelayState{Ready: true}); err != nil {
		t.Fatalf("Ready: %v", err)
	}

	payload := sup.receive(t)
	if payload != "READY=1" {
		t.Errorf("payload = %q, want bare READY=1", payload)
	}
}

func TestForwarderStatusAndWatchdog(t *testing.T) {
	sup := newFakeSupervisor(t)
	fwd := NewForwarder(sup.path, testLogger(), false)

	if err := fwd.Status("accepting connections"); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got := sup.receive(t); got != "STATUS=accepting connections" {
		t.Errorf("status payload = %q", got)
	}

	if err := fwd.Watchdog(); err != nil {
		t.Fatalf("Watchdog: %v", err)
	}
	if got := sup.receive(t); got != "WATCHDOG=1" {
		t.Errorf("watchdog payload = %q", got)
	}
}

func TestForwarderUnsupervisedIsNoOp(t *testing.T) {
	fwd := NewForwarder("", testLogger(), true)
	if fwd.Supervised() {
		t.Error("Supervised() = true with empty socket path")
	}
	if err := fwd.Ready(channel.RelayState{Ready: true}); err != nil {
		t.Errorf("unsupervised Ready should succeed, got %v", err)
	}
}

func TestForwarderSendFailure(t *testing.T) {
	fwd := NewForwarder(filepath.Join(t.TempDir(), "gone.sock"), testLogger(), false)
	if err := fwd.Ready(channel.RelayState{Ready: true}); err == nil {
		t.Error("Ready toward a missing socket should fail")
	}
}
