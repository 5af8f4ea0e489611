package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragchat/internal/domain"
	"ragchat/internal/quota"
)

const (
	promptPreamble = "You are a personal knowledge-base assistant.\n" +
		"Answer clearly, concisely and professionally in 3-4 sentences."

	// Per-passage budget for the prompt context.
	contextExcerptLen = 500
	// Per-passage budget for the snippets echoed back as sources.
	sourceSnippetLen = 200

	insufficientAnswer  = "I don't have enough information to answer this question."
	searchFailedAnswer  = "Error searching the knowledge base."
	generationApology   = "I encountered an error while processing your question."
	emptyAnswerFallback = "I may not have this detail yet, but I can help you explore a related question."
)

// Small consumer-side views of the collaborators, easy to fake in tests.

type limiter interface {
	Check(ctx context.Context, identity domain.Identity) (quota.Decision, error)
	Increment(ctx context.Context, identity domain.Identity) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, prompt string) (string, error)
}

type conversations interface {
	AppendMessage(ctx context.Context, sessionID, owner string, role domain.Role, content string, sources []domain.Source, autoTitle bool) (*domain.Message, error)
}

// Event describes one accepted query, published best-effort after the
// response is assembled.
type Event struct {
	UserID    string    `json:"user_id,omitempty"`
	Address   string    `json:"address,omitempty"`
	Question  string    `json:"question"`
	SessionID string    `json:"session_id,omitempty"`
	Answered  bool      `json:"answered"`
	Persisted bool      `json:"persisted"`
	Timestamp time.Time `json:"timestamp"`
}

type eventPublisher interface {
	PublishQuery(ctx context.Context, evt Event)
}

// Result is the caller-visible outcome of a query.
type Result struct {
	Answer        string          `json:"answer"`
	Sources       []domain.Source `json:"sources"`
	LimitExceeded bool            `json:"limit_exceeded,omitempty"`
	LimitInfo     quota.Decision  `json:"limit_info"`
	SessionID     string          `json:"chat_id,omitempty"`
	Persisted     bool            `json:"messages_saved"`
}

// Orchestrator runs accept, retrieve, generate, persist for each query. It
// favors always answering: infrastructure failures past the quota gate
// degrade into fixed answers rather than surfacing.
type Orchestrator struct {
	gate      limiter
	retriever domain.Retriever
	rotator   dispatcher
	store     conversations
	events    eventPublisher
	now       func() time.Time
	log       *zap.Logger
}

type Option func(*Orchestrator)

// WithEvents attaches a best-effort query event publisher.
func WithEvents(events eventPublisher) Option {
	return func(o *Orchestrator) { o.events = events }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(gate limiter, retriever domain.Retriever, rotator dispatcher, store conversations, log *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gate:      gate,
		retriever: retriever,
		rotator:   rotator,
		store:     store,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit answers one question for identity. sessionID is optional; history is
// persisted only for registered identities that supplied one.
func (o *Orchestrator) Submit(ctx context.Context, identity domain.Identity, question string, k int, sessionID string) (Result, error) {
	if k < 1 {
		k = 1
	}

	decision, err := o.gate.Check(ctx, identity)
	if err != nil {
		return Result{}, fmt.Errorf("quota check: %w", err)
	}
	if !decision.Allowed {
		// Terminal, zero side effects.
		return Result{
			Answer:        decision.Message,
			Sources:       []domain.Source{},
			LimitExceeded: true,
			LimitInfo:     decision,
		}, nil
	}

	passages, err := o.retriever.Search(ctx, question, k)
	if err != nil {
		o.log.Error("retrieval failed", zap.Error(err))
		return Result{Answer: searchFailedAnswer, Sources: []domain.Source{}, LimitInfo: decision}, nil
	}
	if len(passages) == 0 {
		// Quota is not debited on this path.
		return Result{Answer: insufficientAnswer, Sources: []domain.Source{}, LimitInfo: decision}, nil
	}

	prompt := o.assemblePrompt(question, passages)

	answer, err := o.rotator.Dispatch(ctx, prompt)
	answered := err == nil
	if err != nil {
		// Never propagate the raw upstream error to the caller.
		o.log.Error("generation failed on every credential", zap.Error(err))
		answer = generationApology
	}
	if answer == "" {
		answer = emptyAnswerFallback
	}

	// Cost is per attempt, not per success.
	if err := o.gate.Increment(ctx, identity); err != nil {
		o.log.Warn("quota increment failed", zap.Error(err))
	}

	sources := buildSources(passages)

	persisted := false
	if sessionID != "" && identity.Registered() {
		persisted = o.persistExchange(ctx, sessionID, identity.UserID, question, answer, sources)
	}

	if o.events != nil {
		o.events.PublishQuery(ctx, Event{
			UserID:    identity.UserID,
			Address:   identity.Address,
			Question:  question,
			SessionID: sessionID,
			Answered:  answered,
			Persisted: persisted,
			Timestamp: o.now(),
		})
	}

	return Result{
		Answer:  answer,
		Sources: sources,
		LimitInfo: quota.Decision{
			Allowed:   true,
			Limit:     decision.Limit,
			Current:   decision.Current + 1,
			Remaining: decision.Remaining - 1,
		},
		SessionID: sessionID,
		Persisted: persisted,
	}, nil
}

// CheckLimit reports the current quota standing without consuming anything.
func (o *Orchestrator) CheckLimit(ctx context.Context, identity domain.Identity) (quota.Decision, error) {
	return o.gate.Check(ctx, identity)
}

func (o *Orchestrator) assemblePrompt(question string, passages []domain.Passage) string {
	excerpts := make([]string, len(passages))
	for i, p := range passages {
		excerpts[i] = truncateRunes(p.Content, contextExcerptLen)
	}
	return fmt.Sprintf("%s\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:",
		promptPreamble, strings.Join(excerpts, "\n\n"), question)
}

// persistExchange appends the user question and the assistant answer. A
// failure here is logged and swallowed; the response is still returned.
func (o *Orchestrator) persistExchange(ctx context.Context, sessionID, userID, question, answer string, sources []domain.Source) bool {
	if _, err := o.store.AppendMessage(ctx, sessionID, userID, domain.RoleUser, question, nil, true); err != nil {
		o.log.Warn("failed to save user message",
			zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	if _, err := o.store.AppendMessage(ctx, sessionID, userID, domain.RoleAssistant, answer, sources, false); err != nil {
		o.log.Warn("failed to save assistant message",
			zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	return true
}

func buildSources(passages []domain.Passage) []domain.Source {
	sources := make([]domain.Source, len(passages))
	for i, p := range passages {
		sources[i] = domain.Source{
			Locator: p.Locator,
			ChunkNo: p.ChunkNo,
			Snippet: truncateRunes(p.Content, sourceSnippetLen) + "...",
		}
	}
	return sources
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
