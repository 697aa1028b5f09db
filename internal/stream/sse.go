package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "aiassist/stream"

// SSEOpener opens completion streams served as server-sent events
type SSEOpener struct {
	queryURL   string
	tokens     TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
}

// NewSSEOpener creates an opener for the query endpoint at queryURL
func NewSSEOpener(queryURL string, tokens TokenProvider, logger *slog.Logger) (*SSEOpener, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}
	if _, err := url.Parse(queryURL); err != nil {
		return nil, fmt.Errorf("invalid query url: %w", err)
	}

	duration, err := otel.Meter(instrumentationName).Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", "error", err)
	}

	return &SSEOpener{
		queryURL: queryURL,
		tokens:   tokens,
		httpClient: &http.Client{
			Timeout: 0, // No timeout for SSE streams
		},
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
	}, nil
}

// Open connects to the service and returns an unstarted event source
func (o *SSEOpener) Open(ctx context.Context, prompt string, postID int64) (EventSource, error) {
	ctx, span := o.tracer.Start(ctx, "sse_stream_open")
	defer span.End()

	start := time.Now()

	token, err := o.tokens.Token(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token")
		return nil, err
	}

	streamURL, err := queryURL(o.queryURL, prompt, token, postID)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		cancel()
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect")
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if o.duration != nil {
		o.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("transport", "sse")))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			o.tokens.Invalidate()
		}
		apiErr := newAPIError(resp.StatusCode, body)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, "status")
		return nil, apiErr
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("unexpected content type: %s", contentType)
	}

	src := newSource(o.logger, func() error {
		cancel()
		return resp.Body.Close()
	})
	go readSSE(src, newDecoder(o.logger), resp.Body)

	o.logger.Info("opened completion stream", "transport", "sse", "post_id", postID)
	return src, nil
}

// readSSE parses the event stream after Start and dispatches events
func readSSE(src *source, dec *decoder, body io.Reader) {
	if !src.waitStart() {
		return
	}

	reader := bufio.NewReader(body)
	var eventType string
	var eventData strings.Builder
	hasData := false

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			src.fail(err)
			return
		}

		line = strings.TrimRight(line, "\r\n")

		// Empty line = event complete
		if line == "" {
			if hasData {
				data := eventData.String()
				switch eventType {
				case "", "message":
					src.deliver(dec, data)
				default:
					src.emit(Event{Name: eventType, Data: data})
				}
			}
			if src.isClosed() {
				return
			}
			eventType = ""
			eventData.Reset()
			hasData = false
			continue
		}

		// Comment (heartbeat)
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			eventType = value
		case "data":
			if hasData {
				eventData.WriteByte('\n')
			}
			eventData.WriteString(value)
			hasData = true
		}
	}
}

// queryURL appends the question, token and post id to base
func queryURL(base, prompt, token string, postID int64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid query url: %w", err)
	}
	q := u.Query()
	q.Set("question", prompt)
	if token != "" {
		q.Set("token", token)
	}
	if postID != 0 {
		q.Set("post_id", strconv.FormatInt(postID, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
