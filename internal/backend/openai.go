package backend

// ChatCompletionChunk represents one streamed chunk of an OpenAI-compatible completion
type ChatCompletionChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

// DeltaContent returns the text carried by the first choice, if any
func (c ChatCompletionChunk) DeltaContent() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// DoneMarker is the data payload that terminates a completion stream
const DoneMarker = "[DONE]"

// UnclearPromptMarker prefixes a completion the service could not interpret
const UnclearPromptMarker = "__JETPACK_AI_ERROR__"
