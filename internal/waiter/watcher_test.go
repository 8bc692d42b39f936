package waiter

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"sdrelay/internal/channel"
	"sdrelay/pkg/notify"
)

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[test] ", 0)
}

func mergePayload(t *testing.T, state *channel.RelayState, payload string) {
	t.Helper()
	rec, _ := notify.ParseDatagram([]byte(payload))
	state.Merge(rec)
}

func TestWatcherEmitsAdvancingSnapshots(t *testing.T) {
	store := channel.NewStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := NewWatcher(store, 20*time.Millisecond, testLogger(), true).Run(ctx)

	state := channel.NewState()
	mergePayload(t, state, "STATUS=starting")
	if err := store.Write(state); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case got := <-updates:
		if got.Seq != 1 || got.Status != "starting" {
			t.Errorf("first update = %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no update for first snapshot")
	}

	mergePayload(t, state, "READY=1")
	if err := store.Write(state); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case got := <-updates:
		if got.Seq != 2 || !got.Ready {
			t.Errorf("second update = %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no update for advanced snapshot")
	}
}

func TestWatcherSilentOnUnchangedSnapshot(t *testing.T) {
	store := channel.NewStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := channel.NewState()
	mergePayload(t, state, "STATUS=once")
	if err := store.Write(state); err != nil {
		t.Fatalf("Write: %v", err)
	}

	updates := NewWatcher(store, 10*time.Millisecond, testLogger(), false).Run(ctx)

	<-updates // the initial snapshot

	// Rewriting the same sequence number must not produce an update.
	if err := store.Write(state); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case got := <-updates:
		t.Errorf("unexpected update %+v for unchanged seq", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherToleratesMissingSnapshot(t *testing.T) {
	store := channel.NewStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := NewWatcher(store, 10*time.Millisecond, testLogger(), false).Run(ctx)

	// No snapshot for a while is a valid transient state, not an error.
	select {
	case got, ok := <-updates:
		if ok {
			t.Errorf("unexpected update %+v from empty dir", got)
		} else {
			t.Error("updates channel closed early")
		}
	case <-time.After(150 * time.Millisecond):
	}

	state := channel.NewState()
	mergePayload(t, state, "READY=1")
	if err := store.Write(state); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case got := <-updates:
		if !got.Ready {
			t.Errorf("update = %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("late snapshot never surfaced")
	}
}

func TestWatcherFollowsSequenceRegression(t *testing.T) {
	store := channel.NewStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A previous writer got far ahead before dying.
	old := channel.NewState()
	for old.Seq < 50 {
		mergePayload(t, old, "STATUS=old run")
	}
	old.MarkTerminal(5)
	if err := store.Write(old); err != nil {
		t.Fatalf("Write: %v", err)
	}

	updates := NewWatcher(store, 10*time.Millisecond, testLogger(), true).Run(ctx)
	<-updates // the leftover snapshot

	// A new writer restarts the sequence from zero. Its snapshots must
	// surface even though they number far below the old one's.
	fresh := channel.NewState()
	if err := store.Write(fresh); err != nil {
		t.Fatalf("Write: %v", err)
	}
	mergePayload(t, fresh, "READY=1")
	if err := store.Write(fresh); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-updates:
			if got.Ready && !got.Terminal {
				return
			}
		case <-deadline:
			t.Fatal("new writer's READY snapshot never surfaced")
		}
	}
}

func TestWatcherChannelClosesOnCancel(t *testing.T) {
	store := channel.NewStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())

	updates := NewWatcher(store, 10*time.Millisecond, testLogger(), false).Run(ctx)
	cancel()

	select {
	case _, ok := <-updates:
		if ok {
			// Drain anything emitted before the cancel took effect.
			for range updates {
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("updates channel did not close after cancel")
	}
}
