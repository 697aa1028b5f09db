package suggestion

import (
	"context"
	"sync"

	"AIAssist/internal/document"
	"AIAssist/internal/stream"
)

type fakeSource struct {
	mu         sync.Mutex
	handlers   map[string][]stream.Handler
	started    bool
	closeCount int
	onStart    func(*fakeSource)
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string][]stream.Handler)}
}

func (f *fakeSource) On(name string, handler stream.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = append(f.handlers[name], handler)
}

func (f *fakeSource) Start() {
	f.mu.Lock()
	f.started = true
	onStart := f.onStart
	f.mu.Unlock()
	if onStart != nil {
		onStart(f)
	}
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	return nil
}

func (f *fakeSource) emit(name, data string) {
	f.mu.Lock()
	handlers := append([]stream.Handler(nil), f.handlers[name]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(stream.Event{Name: name, Data: data})
	}
}

func (f *fakeSource) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

type openCall struct {
	prompt string
	postID int64
}

type fakeOpener struct {
	mu      sync.Mutex
	calls   []openCall
	sources []*fakeSource
	errs    []error
}

func (o *fakeOpener) Open(_ context.Context, prompt string, postID int64) (stream.EventSource, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, openCall{prompt: prompt, postID: postID})

	if len(o.errs) > 0 {
		err := o.errs[0]
		o.errs = o.errs[1:]
		if err != nil {
			return nil, err
		}
	}

	src := newFakeSource()
	o.sources = append(o.sources, src)
	return src, nil
}

func (o *fakeOpener) last() *fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sources) == 0 {
		return nil
	}
	return o.sources[len(o.sources)-1]
}

func (o *fakeOpener) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

type trackedEvent struct {
	name  string
	props map[string]any
}

type fakeTracks struct {
	mu     sync.Mutex
	events []trackedEvent
	panics bool
}

func (t *fakeTracks) RecordEvent(name string, props map[string]any) {
	if t.panics {
		panic("tracks unavailable")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, trackedEvent{name: name, props: props})
}

func samplePost() *document.Post {
	return &document.Post{
		ID:        42,
		PostTitle: "My Post",
		Content: []document.Block{
			{ClientID: "intro", Attributes: document.Attributes{Content: "Hello<br/>World"}},
			{ClientID: "assistant"},
		},
	}
}
