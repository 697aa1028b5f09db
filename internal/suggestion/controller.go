// Package suggestion drives one streamed suggestion at a time: it builds the
// prompt, opens the completion stream, follows its events and settles the
// session, keeping enough state to retry a failed request.
package suggestion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"AIAssist/internal/document"
	"AIAssist/internal/prompt"
	"AIAssist/internal/session"
	"AIAssist/internal/stream"
	"AIAssist/internal/telemetry"

	"github.com/google/uuid"
)

var (
	// ErrRequestInFlight is returned when a request is made while another is outstanding
	ErrRequestInFlight = errors.New("a suggestion request is already in flight")
	// ErrNotRetryable is returned by Retry when there is nothing to retry
	ErrNotRetryable = errors.New("no failed request to retry")
	// ErrClosed is returned once the controller has been torn down
	ErrClosed = errors.New("suggestion controller closed")
)

const (
	// UnclearPromptMessage is shown when the service could not interpret the request
	UnclearPromptMessage = "Your request was unclear. Mind trying again?"
	// FallbackErrorMessage is shown when a failure carries no message of its own
	FallbackErrorMessage = "Whoops, we have encountered an error. AI is like really, really hard and this is an experimental feature. Please try again later."
	// CompletionRequestedEvent is the analytics event recorded for every request
	CompletionRequestedEvent = "jetpack_ai_chat_completion"
)

// uncategorizedID is the default category, never worth mentioning in a prompt
const uncategorizedID = 1

// Deps are the collaborators a Controller consumes
type Deps struct {
	Editor document.Editor
	Build  prompt.BuildFunc
	Opener stream.Opener
	Tracks telemetry.Tracker
	Logger *slog.Logger
}

// Params describe the block the assistant is writing into
type Params struct {
	ClientID   string
	UserPrompt string
	// Content is the block's current generated content, if any
	Content string
}

// Snapshot is a point-in-time view of the controller
type Snapshot struct {
	Phase             session.Phase
	Type              prompt.Type
	Options           prompt.Options
	LastPrompt        string
	PartialContent    string
	ErrorMessage      string
	Retryable         bool
	LoadingCategories bool
	LoadingCompletion bool
	JustRequested     bool
	PostTitle         string
	ContentBefore     string
	WholeContent      string
}

// Option configures a Controller
type Option func(*Controller)

// WithContentHandler is called with the latest generated content
func WithContentHandler(fn func(content string)) Option {
	return func(c *Controller) { c.onContent = fn }
}

// WithPromptTypeHandler is called when a fresh request records its intent
func WithPromptTypeHandler(fn func(prompt.Type)) Option {
	return func(c *Controller) { c.onPromptType = fn }
}

// WithErrorHandler is called with the user-facing error, or "" when it is cleared
func WithErrorHandler(fn func(message string)) Option {
	return func(c *Controller) { c.onError = fn }
}

// WithChangeHandler is called after every state change
func WithChangeHandler(fn func(Snapshot)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithSettleHandler is called once per session when it leaves the in-flight phases
func WithSettleHandler(fn func(session.Session)) Option {
	return func(c *Controller) { c.onSettle = fn }
}

// Controller is the suggestion session controller
type Controller struct {
	deps     Deps
	clientID string

	onContent    func(string)
	onPromptType func(prompt.Type)
	onError      func(string)
	onChange     func(Snapshot)
	onSettle     func(session.Session)

	mu            sync.Mutex
	phase         session.Phase
	typ           prompt.Type
	options       prompt.Options
	lastPrompt    string
	userPrompt    string
	partial       string
	errMsg        string
	retryable     bool
	justRequested bool
	closed        bool

	// generation increments per request so events from an older binding are ignored
	generation uint64
	current    *Binding
	record     session.Session
}

// New creates a Controller
func New(deps Deps, params Params, opts ...Option) *Controller {
	if deps.Build == nil {
		deps.Build = prompt.Build
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	c := &Controller{
		deps:       deps,
		clientID:   params.ClientID,
		phase:      session.PhaseIdle,
		options:    prompt.DefaultOptions(),
		userPrompt: params.UserPrompt,
		partial:    params.Content,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request starts a suggestion of the given type. An empty type reuses the
// last intent. It returns ErrRequestInFlight without side effects while a
// request is outstanding. A failure to open the stream settles the session
// with a retryable error and returns a nil Binding and nil error.
func (c *Controller) Request(ctx context.Context, typ prompt.Type, opts *prompt.Options) (*Binding, error) {
	options := mergeOptions(opts)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.phase.InFlight() {
		c.mu.Unlock()
		return nil, ErrRequestInFlight
	}
	if options.RetryRequest && c.lastPrompt == "" {
		c.mu.Unlock()
		return nil, ErrNotRetryable
	}
	if typ == "" {
		typ = c.typ
	}

	c.mustTransition(session.PhaseRequesting)
	c.generation++
	gen := c.generation
	c.errMsg = ""
	c.retryable = false
	c.justRequested = true
	generated := c.partial
	previous := c.lastPrompt
	userPrompt := c.userPrompt
	if !options.RetryRequest {
		c.options = options
	}
	c.mu.Unlock()

	promptText := previous
	if !options.RetryRequest {
		promptText = c.deps.Build(c.promptInput(typ, options, generated, previous, userPrompt))
	}

	c.mu.Lock()
	if !options.RetryRequest {
		c.lastPrompt = promptText
		c.typ = typ
	}
	c.record = session.Session{
		ID:        uuid.NewString(),
		PostID:    c.postID(),
		Type:      string(c.typ),
		Tone:      string(c.options.Tone),
		Prompt:    promptText,
		Retry:     options.RetryRequest,
		Phase:     session.PhaseRequesting,
		StartTime: time.Now(),
	}
	c.mu.Unlock()

	if !options.RetryRequest && c.onPromptType != nil {
		c.onPromptType(typ)
	}
	if c.onError != nil {
		c.onError("")
	}
	c.track()
	c.notify()

	c.deps.Logger.Info("requesting suggestion", "type", typ, "retry", options.RetryRequest, "post_id", c.postID())

	src, err := c.deps.Opener.Open(ctx, promptText, c.postID())
	if err != nil {
		c.openFailed(gen, err)
		return nil, nil
	}

	binding := &Binding{ctrl: c, gen: gen, src: src}

	c.mu.Lock()
	if c.closed || c.generation != gen {
		c.mustTransition(session.PhaseIdle)
		c.justRequested = false
		c.mu.Unlock()
		if err := src.Close(); err != nil {
			c.deps.Logger.Warn("failed to close stream", "error", err)
		}
		c.notify()
		return nil, ErrClosed
	}
	c.current = binding
	c.mustTransition(session.PhaseStreaming)
	c.record.Phase = session.PhaseStreaming
	c.mu.Unlock()

	src.On(stream.EventSuggestion, func(ev stream.Event) { c.handleSuggestion(gen, ev) })
	src.On(stream.EventDone, func(ev stream.Event) { c.handleDone(gen, ev) })
	src.On(stream.EventUnclearPrompt, func(ev stream.Event) { c.handleUnclearPrompt(gen, ev) })
	src.Start()

	c.notify()
	return binding, nil
}

// Retry resubmits the last prompt after a failed session
func (c *Controller) Retry(ctx context.Context) (*Binding, error) {
	c.mu.Lock()
	retryable := c.retryable
	c.mu.Unlock()

	if !retryable {
		return nil, ErrNotRetryable
	}
	return c.Request(ctx, "", &prompt.Options{RetryRequest: true})
}

// SetUserPrompt sets the free-text instruction used by the next fresh request
func (c *Controller) SetUserPrompt(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userPrompt = text
}

// SetContent replaces the generated content the next prompt iterates over
func (c *Controller) SetContent(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partial = content
}

// Snapshot returns the controller state together with the derived accessors
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		Phase:             c.phase,
		Type:              c.typ,
		Options:           c.options,
		LastPrompt:        c.lastPrompt,
		PartialContent:    c.partial,
		ErrorMessage:      c.errMsg,
		Retryable:         c.retryable,
		LoadingCompletion: c.phase.InFlight(),
		JustRequested:     c.justRequested,
	}
	c.mu.Unlock()

	_, _, loaded := c.terms()
	snap.LoadingCategories = !loaded
	snap.PostTitle = c.PostTitle()
	snap.ContentBefore = c.ContentBefore()
	snap.WholeContent = c.WholeContent()
	return snap
}

// PostTitle returns the title of the edited post
func (c *Controller) PostTitle() string {
	if c.deps.Editor == nil {
		return ""
	}
	return c.deps.Editor.Title()
}

// ContentBefore returns the post text preceding the assistant's block
func (c *Controller) ContentBefore() string {
	return document.ContentBefore(c.deps.Editor, c.clientID)
}

// WholeContent returns the text of the whole post
func (c *Controller) WholeContent() string {
	return document.WholeContent(c.deps.Editor)
}

// Close tears the controller down, closing any live stream
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	binding := c.current
	c.mu.Unlock()

	if binding != nil {
		return binding.Close()
	}
	return nil
}

func (c *Controller) handleSuggestion(gen uint64, ev stream.Event) {
	c.mu.Lock()
	if gen != c.generation || c.phase != session.PhaseStreaming {
		c.mu.Unlock()
		return
	}
	c.partial = ev.Data
	c.justRequested = false
	c.mu.Unlock()

	c.deps.Logger.Debug("suggestion received", "full_message", ev.Data)
	if c.onContent != nil {
		c.onContent(ev.Data)
	}
	c.notify()
}

func (c *Controller) handleDone(gen uint64, ev stream.Event) {
	c.mu.Lock()
	if gen != c.generation || c.phase != session.PhaseStreaming {
		c.mu.Unlock()
		return
	}
	c.partial = ev.Data
	c.justRequested = false
	c.mustTransition(session.PhaseSettledSuccess)
	binding := c.current
	c.current = nil
	record := c.finishRecord("")
	c.mu.Unlock()

	binding.release()
	c.deps.Logger.Info("suggestion completed", "session_id", record.ID, "length", len(ev.Data))
	if c.onContent != nil {
		c.onContent(ev.Data)
	}
	c.settle(record)
	c.notify()
}

func (c *Controller) handleUnclearPrompt(gen uint64, _ stream.Event) {
	c.mu.Lock()
	if gen != c.generation || c.phase != session.PhaseStreaming {
		c.mu.Unlock()
		return
	}
	c.justRequested = false
	c.mustTransition(session.PhaseSettledError)
	c.errMsg = UnclearPromptMessage
	c.retryable = true
	binding := c.current
	c.current = nil
	record := c.finishRecord(UnclearPromptMessage)
	c.mu.Unlock()

	binding.release()
	c.deps.Logger.Warn("service reported an unclear prompt", "session_id", record.ID)
	if c.onError != nil {
		c.onError(UnclearPromptMessage)
	}
	c.settle(record)
	c.notify()
}

func (c *Controller) openFailed(gen uint64, err error) {
	message := errorMessage(err)

	c.mu.Lock()
	if gen != c.generation || c.phase != session.PhaseRequesting {
		c.mu.Unlock()
		return
	}
	c.justRequested = false
	c.mustTransition(session.PhaseSettledError)
	c.errMsg = message
	c.retryable = true
	record := c.finishRecord(message)
	c.mu.Unlock()

	c.deps.Logger.Error("failed to open completion stream", "session_id", record.ID, "error", err)
	if c.onError != nil {
		c.onError(message)
	}
	c.settle(record)
	c.notify()
}

// bindingClosed resets a streaming session whose binding was closed by the caller
func (c *Controller) bindingClosed(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.phase != session.PhaseStreaming {
		c.mu.Unlock()
		return
	}
	c.justRequested = false
	c.mustTransition(session.PhaseIdle)
	c.current = nil
	record := c.finishRecord("")
	c.mu.Unlock()

	c.deps.Logger.Info("suggestion cancelled", "session_id", record.ID)
	c.settle(record)
	c.notify()
}

// mustTransition moves to the next phase. Callers hold c.mu.
func (c *Controller) mustTransition(to session.Phase) {
	if !canTransition(c.phase, to) {
		panic(transitionError{from: c.phase, to: to})
	}
	c.phase = to
}

// finishRecord completes the session record. Callers hold c.mu.
func (c *Controller) finishRecord(errMsg string) session.Session {
	c.record.Phase = c.phase
	c.record.Content = c.partial
	c.record.Error = errMsg
	c.record.EndTime = time.Now()
	return c.record
}

func (c *Controller) settle(record session.Session) {
	if c.onSettle != nil {
		c.onSettle(record)
	}
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.Snapshot())
	}
}

// track records the analytics event. A misbehaving tracker never affects the request.
func (c *Controller) track() {
	if c.deps.Tracks == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.deps.Logger.Warn("analytics event failed", "event", CompletionRequestedEvent, "panic", r)
		}
	}()
	c.deps.Tracks.RecordEvent(CompletionRequestedEvent, map[string]any{
		"post_id": c.postID(),
	})
}

func (c *Controller) postID() int64 {
	if c.deps.Editor == nil {
		return 0
	}
	return c.deps.Editor.PostID()
}

func (c *Controller) promptInput(typ prompt.Type, options prompt.Options, generated, previous, userPrompt string) prompt.Input {
	categories, tags, _ := c.terms()
	return prompt.Input{
		GeneratedContent: generated,
		AllPostContent:   c.WholeContent(),
		PostContentAbove: c.ContentBefore(),
		CurrentPostTitle: c.PostTitle(),
		Options:          options,
		Prompt:           previous,
		UserPrompt:       userPrompt,
		Type:             typ,
		Categories:       categories,
		Tags:             tags,
	}
}

// terms resolves the post's category and tag names
func (c *Controller) terms() (categories, tags []string, loaded bool) {
	editor := c.deps.Editor
	if editor == nil {
		return nil, nil, true
	}

	var categoryIDs []int64
	for _, id := range editor.Categories() {
		if id != uncategorizedID {
			categoryIDs = append(categoryIDs, id)
		}
	}

	categories, categoriesLoaded := document.TermNames(editor, document.TaxonomyCategory, categoryIDs)
	tags, tagsLoaded := document.TermNames(editor, document.TaxonomyTag, editor.Tags())
	return categories, tags, categoriesLoaded && tagsLoaded
}

func mergeOptions(opts *prompt.Options) prompt.Options {
	options := prompt.DefaultOptions()
	if opts == nil {
		return options
	}
	options.RetryRequest = opts.RetryRequest
	if opts.Tone.Valid() {
		options.Tone = opts.Tone
	}
	return options
}

// errorMessage picks the user-facing text for a failed open
func errorMessage(err error) string {
	var apiErr *stream.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return FallbackErrorMessage
}
