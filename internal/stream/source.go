// Package stream opens completion streams against the assistant service and
// exposes them as event sources emitting suggestion, done and
// error_unclear_prompt events.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Event names emitted by an EventSource
const (
	EventSuggestion    = "suggestion"
	EventDone          = "done"
	EventUnclearPrompt = "error_unclear_prompt"
	// EventError is emitted when the transport fails mid-stream
	EventError = "error"
)

// Event is a single named event delivered by an EventSource
type Event struct {
	Name string
	Data string
}

// Handler receives events from an EventSource
type Handler func(Event)

// EventSource is a live, closable connection delivering stream events.
// Handlers registered with On before Start see every event; events are
// dispatched one at a time on a single goroutine. Close is idempotent.
type EventSource interface {
	On(name string, handler Handler)
	Start()
	Close() error
}

// Opener opens a completion stream for a prompt
type Opener interface {
	Open(ctx context.Context, prompt string, postID int64) (EventSource, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(ctx context.Context, prompt string, postID int64) (EventSource, error)

func (f OpenerFunc) Open(ctx context.Context, prompt string, postID int64) (EventSource, error) {
	return f(ctx, prompt, postID)
}

// APIError is returned when the service rejects a request.
// Message is already suitable for showing to a user.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// source holds the listener registry and lifecycle shared by transports
type source struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler

	started   chan struct{}
	closed    chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
	release   func() error
}

func newSource(logger *slog.Logger, release func() error) *source {
	return &source{
		logger:   logger,
		handlers: make(map[string][]Handler),
		started:  make(chan struct{}),
		closed:   make(chan struct{}),
		release:  release,
	}
}

// On registers a handler for the named event
func (s *source) On(name string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = append(s.handlers[name], handler)
}

// Start releases the reader goroutine
func (s *source) Start() {
	s.startOnce.Do(func() { close(s.started) })
}

// Close releases the underlying connection exactly once
func (s *source) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.release != nil {
			s.closeErr = s.release()
		}
	})
	return s.closeErr
}

// isClosed reports whether Close has been called
func (s *source) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// waitStart blocks until Start or Close; it returns false when closed first
func (s *source) waitStart() bool {
	select {
	case <-s.started:
		return !s.isClosed()
	case <-s.closed:
		return false
	}
}

// emit dispatches an event unless the source is already closed
func (s *source) emit(ev Event) {
	if s.isClosed() {
		return
	}

	s.mu.RLock()
	handlers := append([]Handler(nil), s.handlers[ev.Name]...)
	s.mu.RUnlock()

	for _, handler := range handlers {
		handler(ev)
	}
}

// deliver runs a raw data payload through the decoder and emits the result
func (s *source) deliver(dec *decoder, data string) {
	ev, ok := dec.decode(data)
	if !ok {
		return
	}
	if ev.Name == EventUnclearPrompt {
		// The service gave up on the prompt; nothing useful follows.
		s.emit(ev)
		if err := s.Close(); err != nil {
			s.logger.Warn("failed to close stream", "error", err)
		}
		return
	}
	s.emit(ev)
}

// fail reports a transport error unless the stream was closed on purpose
func (s *source) fail(err error) {
	if s.isClosed() {
		return
	}
	s.logger.Warn("stream ended unexpectedly", "error", err)
	s.emit(Event{Name: EventError, Data: err.Error()})
}
