package stream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chunk(content string) string {
	data, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion.chunk",
		"choices": []any{
			map[string]any{"index": 0, "delta": map[string]any{"content": content}},
		},
	})
	return string(data)
}

type fakeTokens struct {
	token       string
	err         error
	invalidated atomic.Int32
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	return f.token, f.err
}

func (f *fakeTokens) Invalidate() {
	f.invalidated.Add(1)
}

// recorder collects events and signals when a terminal one arrives
type recorder struct {
	mu     sync.Mutex
	events []Event
	once   sync.Once
	done   chan struct{}
}

func record(src EventSource) *recorder {
	r := &recorder{done: make(chan struct{})}
	for _, name := range []string{EventSuggestion, EventDone, EventUnclearPrompt} {
		src.On(name, r.add)
	}
	return r
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if ev.Name == EventDone || ev.Name == EventUnclearPrompt {
		r.once.Do(func() { close(r.done) })
	}
}

func (r *recorder) wait(t *testing.T) []Event {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal event")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
