package assistant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"AIAssist/internal/config"
	"AIAssist/internal/document"
	"AIAssist/internal/prompt"
	"AIAssist/internal/session"
	"AIAssist/internal/store"
	"AIAssist/internal/stream"
	"AIAssist/internal/suggestion"
	"AIAssist/internal/telemetry"
)

// Assistant represents the terminal application
type Assistant struct {
	config     config.Config
	store      *store.Store
	logger     *slog.Logger
	cleanup    func()
	post       *document.Post
	clientID   string
	controller *suggestion.Controller
	out        io.Writer

	mu       sync.Mutex
	tone     prompt.Tone
	printed  string
	closed   bool
	settled  chan session.Session
	saveWait sync.WaitGroup
}

// NewAssistant creates a new Assistant instance
func NewAssistant(cfg config.Config) (*Assistant, error) {
	logger, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	tracks, err := telemetry.NewTracks(logger, tracer, meter)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize tracks: %w", err)
	}

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	opener, err := newOpener(cfg, logger)
	if err != nil {
		st.Close()
		cleanup()
		return nil, err
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	a := &Assistant{
		config:  cfg,
		store:   st,
		logger:  logger,
		cleanup: cleanup,
		out:     os.Stdout,
		tone:    prompt.Tone(cfg.Tone),
		settled: make(chan session.Session, 1),
	}

	a.post, err = loadPost(cfg.PostPath, logger)
	if err != nil {
		st.Close()
		cleanup()
		return nil, err
	}

	a.initController(opener, tracks)
	return a, nil
}

// initController resolves the assistant block and wires the suggestion controller
func (a *Assistant) initController(opener stream.Opener, tracks telemetry.Tracker) {
	a.clientID = a.config.ClientID
	if a.clientID == "" || a.post.BlockIndex(a.clientID) < 0 {
		a.clientID = a.post.AppendBlock("core/paragraph", "")
		a.logger.Info("created assistant block", "client_id", a.clientID)
	}

	var initial string
	for _, block := range a.post.Blocks() {
		if block.ClientID == a.clientID {
			initial = block.Attributes.Content
		}
	}

	a.controller = suggestion.New(
		suggestion.Deps{
			Editor: a.post,
			Build:  prompt.Build,
			Opener: opener,
			Tracks: tracks,
			Logger: a.logger,
		},
		suggestion.Params{
			ClientID:   a.clientID,
			UserPrompt: a.config.UserPrompt,
			Content:    initial,
		},
		suggestion.WithContentHandler(a.handleContent),
		suggestion.WithPromptTypeHandler(func(t prompt.Type) {
			a.logger.Info("prompt type set", "type", t)
		}),
		suggestion.WithSettleHandler(a.handleSettle),
	)
}

// newOpener builds the stream opener for the configured transport
func newOpener(cfg config.Config, logger *slog.Logger) (stream.Opener, error) {
	var tokens stream.TokenProvider = stream.StaticToken(cfg.Token)
	if cfg.TokenURL != "" {
		jwtTokens, err := stream.NewJWTTokenSource(cfg.TokenURL, cfg.APIKey, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create token source: %w", err)
		}
		tokens = jwtTokens
	}

	switch cfg.Transport {
	case config.TransportWebSocket:
		opener, err := stream.NewWebSocketOpener(cfg.QueryURL, tokens, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create websocket opener: %w", err)
		}
		return opener, nil
	default:
		opener, err := stream.NewSSEOpener(cfg.QueryURL, tokens, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create sse opener: %w", err)
		}
		return opener, nil
	}
}

// loadPost loads the post file, starting an empty post when it does not exist
func loadPost(path string, logger *slog.Logger) (*document.Post, error) {
	post, err := document.LoadPost(path)
	if err == nil {
		logger.Info("loaded post", "path", path, "blocks", len(post.Blocks()))
		return post, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("post not found, starting an empty one", "path", path)
		return &document.Post{}, nil
	}
	return nil, fmt.Errorf("failed to load post: %w", err)
}

// handleContent mirrors generated content into the block and the terminal
func (a *Assistant) handleContent(content string) {
	if err := a.post.SetBlockContent(a.clientID, content); err != nil {
		a.logger.Warn("failed to update block", "error", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if strings.HasPrefix(content, a.printed) {
		fmt.Fprint(a.out, content[len(a.printed):])
	} else {
		fmt.Fprintf(a.out, "\n%s", content)
	}
	a.printed = content
}

// handleSettle persists the session and wakes the waiting prompt loop
func (a *Assistant) handleSettle(sess session.Session) {
	// Add and Wait must not race: Close flips closed under a.mu before waiting.
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.logger.Warn("assistant closed, session not saved", "session_id", sess.ID, "phase", sess.Phase)
		return
	}
	a.saveWait.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.saveWait.Done()
		if err := a.store.Save(context.Background(), sess); err != nil {
			a.logger.Error("failed to save session", "error", err)
		}
	}()

	select {
	case a.settled <- sess:
	default:
	}
}

// request issues a suggestion and waits for it to settle
func (a *Assistant) request(ctx context.Context, typ prompt.Type, tone prompt.Tone) error {
	a.drainSettled()
	a.mu.Lock()
	a.printed = ""
	a.mu.Unlock()

	binding, err := a.controller.Request(ctx, typ, &prompt.Options{Tone: tone})
	if err != nil {
		return err
	}
	return a.await(binding)
}

// retry resubmits the last prompt and waits for it to settle
func (a *Assistant) retry(ctx context.Context) error {
	a.drainSettled()
	a.mu.Lock()
	a.printed = ""
	a.mu.Unlock()

	binding, err := a.controller.Retry(ctx)
	if err != nil {
		return err
	}
	return a.await(binding)
}

// await blocks until the session settles, the user interrupts or the timeout fires
func (a *Assistant) await(binding *suggestion.Binding) error {
	if binding != nil {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		defer signal.Stop(interrupt)

		var timeout <-chan time.Time
		if a.config.StreamTimeout > 0 {
			timer := time.NewTimer(a.config.StreamTimeout)
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case <-a.settled:
		case <-interrupt:
			fmt.Fprintln(a.out, "\n[cancelled]")
			if err := binding.Close(); err != nil {
				a.logger.Warn("failed to close stream", "error", err)
			}
		case <-timeout:
			fmt.Fprintln(a.out, "\n[timed out]")
			if err := binding.Close(); err != nil {
				a.logger.Warn("failed to close stream", "error", err)
			}
		}
	}

	snap := a.controller.Snapshot()
	fmt.Fprintln(a.out)
	if snap.Phase == session.PhaseSettledError {
		fmt.Fprintf(a.out, "Error: %s\n", snap.ErrorMessage)
		if snap.Retryable {
			fmt.Fprintln(a.out, "Type /retry to try again.")
		}
	}
	return nil
}

func (a *Assistant) drainSettled() {
	select {
	case <-a.settled:
	default:
	}
}

// Close flushes pending writes and releases resources
func (a *Assistant) Close() error {
	if err := a.controller.Close(); err != nil {
		a.logger.Warn("failed to close controller", "error", err)
	}
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.saveWait.Wait()
	if a.config.PostPath != "" {
		if err := a.post.Save(a.config.PostPath); err != nil {
			a.logger.Error("failed to save post", "error", err)
		}
	}
	err := a.store.Close()
	a.cleanup()
	return err
}

// Run starts the assistant prompt loop
func (a *Assistant) Run() error {
	defer a.Close()

	fmt.Fprintln(a.out, "=== AI Assistant ===")
	fmt.Fprintf(a.out, "Post: %q (%d blocks)\n", a.post.Title(), len(a.post.Blocks()))
	fmt.Fprintf(a.out, "Transport: %s\n", a.config.Transport)
	fmt.Fprintln(a.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(a.out)

	return a.loop(context.Background(), os.Stdin)
}

func (a *Assistant) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.out, "You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if !strings.HasPrefix(input, "/") {
			a.controller.SetUserPrompt(input)
			input = "/ask"
		}

		shouldQuit, err := a.handleCommand(ctx, input)
		if err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
			a.logger.Error("command error", "error", err)
		}
		if shouldQuit {
			break
		}
	}
	return scanner.Err()
}
