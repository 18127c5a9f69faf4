package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"tgrelay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	b.Publish(domain.Event{ChatID: 42, Text: "hello"})

	select {
	case ev := <-b.Subscribe():
		if ev.ChatID != 42 || ev.Text != "hello" {
			t.Errorf("got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Publish(domain.Event{ChatID: int64(i)})
	}
	events := b.Subscribe()
	for i := 0; i < 5; i++ {
		ev := <-events
		if ev.ChatID != int64(i) {
			t.Fatalf("event %d out of order: chat %d", i, ev.ChatID)
		}
	}
}

func TestPublishAfterCloseDoesNotPanic(t *testing.T) {
	b := New(10, testLogger())
	b.Close()
	b.Publish(domain.Event{ChatID: 1}) // logged and dropped
}

func TestCloseTwice(t *testing.T) {
	b := New(10, testLogger())
	b.Close()
	b.Close()
}

func TestSubscribeClosedAfterClose(t *testing.T) {
	b := New(1, testLogger())
	events := b.Subscribe()
	b.Close()
	if _, ok := <-events; ok {
		t.Error("channel still open after close")
	}
}
