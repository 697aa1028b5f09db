package suggestion

import (
	"sync"

	"AIAssist/internal/stream"
)

// Binding is the caller's handle on a live completion stream. Closing it
// while the session is still streaming cancels the session and returns the
// controller to idle.
type Binding struct {
	ctrl *Controller
	gen  uint64
	src  stream.EventSource

	once sync.Once
	err  error
}

// Close closes the stream exactly once
func (b *Binding) Close() error {
	b.release()
	b.ctrl.bindingClosed(b.gen)
	return b.err
}

// release closes the underlying source without touching the session phase
func (b *Binding) release() {
	if b == nil {
		return
	}
	b.once.Do(func() {
		b.err = b.src.Close()
		if b.err != nil {
			b.ctrl.deps.Logger.Warn("failed to close stream", "error", b.err)
		}
	})
}
