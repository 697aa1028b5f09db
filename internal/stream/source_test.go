package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceCloseIsIdempotent(t *testing.T) {
	releases := 0
	src := newSource(testLogger(), func() error {
		releases++
		return errors.New("already gone")
	})

	assert.EqualError(t, src.Close(), "already gone")
	assert.EqualError(t, src.Close(), "already gone")
	assert.Equal(t, 1, releases)
	assert.True(t, src.isClosed())
	assert.False(t, src.waitStart())
}

func TestSourceEmitDispatchesByName(t *testing.T) {
	src := newSource(testLogger(), nil)
	var got []string
	src.On(EventSuggestion, func(ev Event) { got = append(got, "first:"+ev.Data) })
	src.On(EventSuggestion, func(ev Event) { got = append(got, "second:"+ev.Data) })
	src.On(EventDone, func(ev Event) { got = append(got, "done:"+ev.Data) })

	src.emit(Event{Name: EventSuggestion, Data: "a"})
	assert.Equal(t, []string{"first:a", "second:a"}, got)

	assert.NoError(t, src.Close())
	src.emit(Event{Name: EventDone, Data: "b"})
	assert.Equal(t, []string{"first:a", "second:a"}, got)
}

func TestSourceDeliverClosesOnUnclearPrompt(t *testing.T) {
	releases := 0
	src := newSource(testLogger(), func() error {
		releases++
		return nil
	})
	rec := record(src)
	dec := newDecoder(testLogger())

	src.deliver(dec, chunk("__JETPACK_AI_ERROR__"))
	src.deliver(dec, chunk("more"))

	events := rec.wait(t)
	assert.Equal(t, []Event{{Name: EventUnclearPrompt}}, events)
	assert.True(t, src.isClosed())
	assert.Equal(t, 1, releases)
}

func TestSourceFailEmitsErrorUntilClosed(t *testing.T) {
	src := newSource(testLogger(), nil)
	var got []Event
	src.On(EventError, func(ev Event) { got = append(got, ev) })

	src.fail(errors.New("connection reset"))
	assert.Equal(t, []Event{{Name: EventError, Data: "connection reset"}}, got)

	assert.NoError(t, src.Close())
	src.fail(errors.New("after close"))
	assert.Len(t, got, 1)
}

func TestSourceWaitStart(t *testing.T) {
	src := newSource(testLogger(), nil)
	src.Start()
	src.Start()
	assert.True(t, src.waitStart())
}
