package event

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	var received []Event

	bus.Subscribe(SyncCompleted, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})

	bus.Publish(Event{
		Type: SyncCompleted,
		Data: map[string]any{"releases_added": 42},
	})

	// Give the goroutine time to process
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("got %d events, want 1", len(received))
	}
	if received[0].Data["releases_added"] != 42 {
		t.Errorf("data[releases_added] = %v, want 42", received[0].Data["releases_added"])
	}
	if received[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	count := 0

	for range 3 {
		bus.Subscribe(SyncFailed, func(_ Event) {
			mu.Lock()
			defer mu.Unlock()
			count++
		})
	}

	bus.Publish(Event{Type: SyncFailed})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 3 {
		t.Errorf("got %d handler calls, want 3", count)
	}
}

func TestNoSubscribers(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()
	defer bus.Stop()

	// Should not panic
	bus.Publish(Event{Type: ProviderAttempt})
	time.Sleep(50 * time.Millisecond)
}

func TestBufferFull(t *testing.T) {
	bus := NewBus(testLogger(), 2)
	// Do NOT start the bus -- events will accumulate in the channel

	bus.Publish(Event{Type: SyncCompleted})
	bus.Publish(Event{Type: SyncCompleted})
	// Third event should be dropped (buffer full)
	bus.Publish(Event{Type: SyncCompleted})
	// No panic or deadlock expected
}

func TestHandlerPanicRecovery(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	secondCalled := false

	bus.Subscribe(SyncFailed, func(_ Event) {
		panic("test panic")
	})
	bus.Subscribe(SyncFailed, func(_ Event) {
		mu.Lock()
		defer mu.Unlock()
		secondCalled = true
	})

	bus.Publish(Event{Type: SyncFailed})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !secondCalled {
		t.Error("second handler should still be called after first panics")
	}
}

func TestStopDrainsBuffer(t *testing.T) {
	bus := NewBus(testLogger(), 16)

	var mu sync.Mutex
	count := 0

	bus.Subscribe(SyncCompleted, func(_ Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	// Publish before starting
	bus.Publish(Event{Type: SyncCompleted})
	bus.Publish(Event{Type: SyncCompleted})

	go bus.Start()
	time.Sleep(50 * time.Millisecond)
	bus.Stop()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("got %d events, want 2 (all drained)", count)
	}
}

func TestWildcardSubscriber(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	var types []Type

	bus.Subscribe(All, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type)
	})

	bus.Publish(Event{Type: ProviderAttempt})
	bus.Publish(Event{Type: SyncCompleted})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(types) != 2 || types[0] != ProviderAttempt || types[1] != SyncCompleted {
		t.Errorf("got %v, want [provider.attempt sync.completed]", types)
	}
}

func TestNilBusPublish(t *testing.T) {
	var bus *Bus
	// Should not panic
	bus.Publish(Event{Type: SyncFailed})
}

func TestAuditHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := AuditHandler(logger)

	h(Event{Type: SyncCompleted, Data: map[string]any{"releases_added": 2, "artist_key": "daft-punk"}})
	h(Event{Type: SyncFailed, Data: map[string]any{"stage": "fetch"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "level=INFO") || !strings.Contains(lines[0], "event=sync.completed") {
		t.Errorf("unexpected completed line: %s", lines[0])
	}
	// Data keys are written in sorted order.
	if strings.Index(lines[0], "artist_key=") > strings.Index(lines[0], "releases_added=") {
		t.Errorf("data keys not sorted: %s", lines[0])
	}
	if !strings.Contains(lines[1], "level=WARN") || !strings.Contains(lines[1], "stage=fetch") {
		t.Errorf("unexpected failed line: %s", lines[1])
	}
}

func TestDoneClosedAfterDrain(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	var mu sync.Mutex
	count := 0
	bus.Subscribe(SyncCompleted, func(_ Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})
	bus.Publish(Event{Type: SyncCompleted})
	bus.Publish(Event{Type: SyncCompleted})

	go bus.Start()
	bus.Stop()

	select {
	case <-bus.Done():
	case <-time.After(time.Second):
		t.Fatal("bus did not finish")
	}
	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("got %d events before Done, want 2", count)
	}
}
