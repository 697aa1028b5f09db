package stream

import (
	"encoding/json"
	"log/slog"
	"strings"

	"AIAssist/internal/backend"
)

// decoder accumulates completion chunks into the full suggestion text
type decoder struct {
	logger      *slog.Logger
	fullMessage strings.Builder
}

func newDecoder(logger *slog.Logger) *decoder {
	return &decoder{logger: logger}
}

// decode turns one data payload into an event. ok is false when the payload
// carries nothing to report.
func (d *decoder) decode(data string) (ev Event, ok bool) {
	data = strings.TrimSpace(data)
	if data == "" {
		return Event{}, false
	}

	if data == backend.DoneMarker {
		return Event{Name: EventDone, Data: d.fullMessage.String()}, true
	}

	var chunk backend.ChatCompletionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		d.logger.Warn("skipping malformed chunk", "error", err)
		return Event{}, false
	}

	content := chunk.DeltaContent()
	if content == "" {
		return Event{}, false
	}

	d.fullMessage.WriteString(content)
	message := d.fullMessage.String()
	if strings.HasPrefix(message, backend.UnclearPromptMarker) {
		return Event{Name: EventUnclearPrompt}, true
	}
	// The marker may arrive split across chunks; hold back until it can be told apart.
	if strings.HasPrefix(backend.UnclearPromptMarker, message) {
		return Event{}, false
	}
	return Event{Name: EventSuggestion, Data: message}, true
}
