package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WebSocketOpener opens completion streams over a WebSocket. Every text
// frame carries one data payload, in the same format as an SSE data field.
type WebSocketOpener struct {
	queryURL string
	tokens   TokenProvider
	dialer   *websocket.Dialer
	logger   *slog.Logger
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// NewWebSocketOpener creates an opener for a ws:// or wss:// query endpoint
func NewWebSocketOpener(queryURL string, tokens TokenProvider, logger *slog.Logger) (*WebSocketOpener, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}
	if !strings.HasPrefix(queryURL, "ws://") && !strings.HasPrefix(queryURL, "wss://") {
		return nil, fmt.Errorf("websocket url must start with ws:// or wss://: %s", queryURL)
	}

	duration, err := otel.Meter(instrumentationName).Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", "error", err)
	}

	return &WebSocketOpener{
		queryURL: queryURL,
		tokens:   tokens,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
	}, nil
}

// Open dials the service and returns an unstarted event source
func (o *WebSocketOpener) Open(ctx context.Context, prompt string, postID int64) (EventSource, error) {
	ctx, span := o.tracer.Start(ctx, "websocket_stream_open")
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

	conn, resp, err := o.dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial")
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				o.tokens.Invalidate()
			}
			return nil, newAPIError(resp.StatusCode, body)
		}
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	if o.duration != nil {
		o.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("transport", "websocket")))
	}

	src := newSource(o.logger, func() error {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	})
	go readWebSocket(src, newDecoder(o.logger), conn)

	o.logger.Info("opened completion stream", "transport", "websocket", "post_id", postID)
	return src, nil
}

// readWebSocket reads frames after Start and dispatches events
func readWebSocket(src *source, dec *decoder, conn *websocket.Conn) {
	if !src.waitStart() {
		return
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				err = io.ErrUnexpectedEOF
			}
			src.fail(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		src.deliver(dec, string(data))
		if src.isClosed() {
			return
		}
	}
}
