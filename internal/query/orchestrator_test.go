package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ragchat/internal/domain"
	"ragchat/internal/quota"
)

type fakeGate struct {
	decision   quota.Decision
	checkErr   error
	increments int
}

func (f *fakeGate) Check(context.Context, domain.Identity) (quota.Decision, error) {
	return f.decision, f.checkErr
}

func (f *fakeGate) Increment(context.Context, domain.Identity) error {
	f.increments++
	return nil
}

type fakeRetriever struct {
	passages []domain.Passage
	err      error
}

func (f *fakeRetriever) Search(context.Context, string, int) ([]domain.Passage, error) {
	return f.passages, f.err
}

type fakeDispatcher struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

type appendCall struct {
	sessionID string
	owner     string
	role      domain.Role
	content   string
	sources   []domain.Source
	autoTitle bool
}

type fakeConversations struct {
	calls []appendCall
	err   error
}

func (f *fakeConversations) AppendMessage(_ context.Context, sessionID, owner string, role domain.Role, content string, sources []domain.Source, autoTitle bool) (*domain.Message, error) {
	f.calls = append(f.calls, appendCall{sessionID, owner, role, content, sources, autoTitle})
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Message{SessionID: sessionID, Role: role, Content: content}, nil
}

func allowed(limit, current int) quota.Decision {
	return quota.Decision{Allowed: true, Limit: limit, Current: current, Remaining: limit - current}
}

func passage(content, locator string) domain.Passage {
	return domain.Passage{Content: content, Locator: locator, ChunkNo: 1}
}

func newOrchestrator(gate *fakeGate, retriever *fakeRetriever, dispatcher *fakeDispatcher, store *fakeConversations) *Orchestrator {
	return NewOrchestrator(gate, retriever, dispatcher, store, zap.NewNop())
}

func TestSubmitDeniedIsTerminalWithZeroSideEffects(t *testing.T) {
	gate := &fakeGate{decision: quota.Decision{
		Allowed: false, Limit: 5, Current: 5, RetryAfterHours: 3,
		Message: "Daily query limit (5) reached. Resets in 3 hours.",
	}}
	retriever := &fakeRetriever{passages: []domain.Passage{passage("text", "doc.md")}}
	dispatcher := &fakeDispatcher{answer: "should not run"}
	store := &fakeConversations{}

	o := newOrchestrator(gate, retriever, dispatcher, store)
	res, err := o.Submit(context.Background(), domain.RegisteredIdentity("u1"), "q", 1, "s1")
	require.NoError(t, err)

	assert.True(t, res.LimitExceeded)
	assert.Equal(t, gate.decision.Message, res.Answer)
	assert.Empty(t, res.Sources)
	assert.Zero(t, gate.increments)
	assert.Empty(t, dispatcher.prompts)
	assert.Empty(t, store.calls)
}

func TestSubmitEmptyRetrievalSkipsQuotaDebit(t *testing.T) {
	gate := &fakeGate{decision: allowed(5, 2)}
	o := newOrchestrator(gate, &fakeRetriever{}, &fakeDispatcher{}, &fakeConversations{})

	res, err := o.Submit(context.Background(), domain.RegisteredIdentity("u1"), "q", 1, "")
	require.NoError(t, err)
	assert.Equal(t, insufficientAnswer, res.Answer)
	assert.Zero(t, gate.increments)
}

func TestSubmitRetrievalErrorDegrades(t *testing.T) {
	gate := &fakeGate{decision: allowed(5, 0)}
	o := newOrchestrator(gate, &fakeRetriever{err: errors.New("qdrant down")}, &fakeDispatcher{}, &fakeConversations{})

	res, err := o.Submit(context.Background(), domain.AnonymousIdentity("1.2.3.4"), "q", 1, "")
	require.NoError(t, err)
	assert.Equal(t, searchFailedAnswer, res.Answer)
	assert.Zero(t, gate.increments)
}

func TestSubmitHappyPath(t *testing.T) {
	gate := &fakeGate{decision: allowed(5, 1)}
	retriever := &fakeRetriever{passages: []domain.Passage{
		passage(strings.Repeat("a", 600), "doc.md"),
	}}
	dispatcher := &fakeDispatcher{answer: "the answer"}
	store := &fakeConversations{}

	o := newOrchestrator(gate, retriever, dispatcher, store)
	res, err := o.Submit(context.Background(), domain.RegisteredIdentity("u1"), "what is a?", 1, "s1")
	require.NoError(t, err)

	assert.Equal(t, "the answer", res.Answer)
	assert.Equal(t, 1, gate.increments)
	assert.True(t, res.Persisted)
	assert.Equal(t, "s1", res.SessionID)

	// Quota snapshot is post-increment.
	assert.Equal(t, 2, res.LimitInfo.Current)
	assert.Equal(t, 3, res.LimitInfo.Remaining)

	// Prompt carries the 500-char excerpt and the literal question.
	require.Len(t, dispatcher.prompts, 1)
	prompt := dispatcher.prompts[0]
	assert.Contains(t, prompt, strings.Repeat("a", 500))
	assert.NotContains(t, prompt, strings.Repeat("a", 501))
	assert.Contains(t, prompt, "Question: what is a?")

	// Sources carry the 200-char snippet.
	require.Len(t, res.Sources, 1)
	assert.Equal(t, strings.Repeat("a", 200)+"...", res.Sources[0].Snippet)
	assert.Equal(t, "doc.md", res.Sources[0].Locator)

	// User message first with autoTitle, then assistant with sources.
	require.Len(t, store.calls, 2)
	assert.Equal(t, domain.RoleUser, store.calls[0].role)
	assert.True(t, store.calls[0].autoTitle)
	assert.Nil(t, store.calls[0].sources)
	assert.Equal(t, domain.RoleAssistant, store.calls[1].role)
	assert.False(t, store.calls[1].autoTitle)
	assert.Equal(t, res.Sources, store.calls[1].sources)
}

func TestSubmitGenerationFailureStillDebitsQuota(t *testing.T) {
	gate := &fakeGate{decision: allowed(5, 0)}
	retriever := &fakeRetriever{passages: []domain.Passage{passage("ctx", "doc.md")}}
	dispatcher := &fakeDispatcher{err: domain.ErrAllCredentialsExhausted}

	o := newOrchestrator(gate, retriever, dispatcher, &fakeConversations{})
	res, err := o.Submit(context.Background(), domain.RegisteredIdentity("u1"), "q", 1, "")
	require.NoError(t, err)

	assert.Equal(t, generationApology, res.Answer)
	assert.Equal(t, 1, gate.increments)
	assert.False(t, res.LimitExceeded)
}

func TestSubmitEmptyAnswerFallback(t *testing.T) {
	gate := &fakeGate{decision: allowed(5, 0)}
	retriever := &fakeRetriever{passages: []domain.Passage{passage("ctx", "doc.md")}}
	o := newOrchestrator(gate, retriever, &fakeDispatcher{answer: ""}, &fakeConversations{})

	res, err := o.Submit(context.Background(), domain.RegisteredIdentity("u1"), "q", 1, "")
	require.NoError(t, err)
	assert.Equal(t, emptyAnswerFallback, res.Answer)
}

func TestSubmitPersistenceFailureSwallowed(t *testing.T) {
	gate := &fakeGate{decision: allowed(5, 0)}
	retriever := &fakeRetriever{passages: []domain.Passage{passage("ctx", "doc.md")}}
	store := &fakeConversations{err: domain.ErrPersistence}

	o := newOrchestrator(gate, retriever, &fakeDispatcher{answer: "fine"}, store)
	res, err := o.Submit(context.Background(), domain.RegisteredIdentity("u1"), "q", 1, "s1")
	require.NoError(t, err)

	assert.Equal(t, "fine", res.Answer)
	assert.False(t, res.Persisted)
}

func TestSubmitAnonymousNeverPersists(t *testing.T) {
	gate := &fakeGate{decision: allowed(3, 0)}
	retriever := &fakeRetriever{passages: []domain.Passage{passage("ctx", "doc.md")}}
	store := &fakeConversations{}

	o := newOrchestrator(gate, retriever, &fakeDispatcher{answer: "ok"}, store)
	res, err := o.Submit(context.Background(), domain.AnonymousIdentity("1.2.3.4"), "q", 1, "s1")
	require.NoError(t, err)

	assert.False(t, res.Persisted)
	assert.Empty(t, store.calls)
}

func TestSubmitQuotaCheckErrorSurfaces(t *testing.T) {
	gate := &fakeGate{checkErr: domain.ErrNotFound}
	o := newOrchestrator(gate, &fakeRetriever{}, &fakeDispatcher{}, &fakeConversations{})

	_, err := o.Submit(context.Background(), domain.RegisteredIdentity("ghost"), "q", 1, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type recordingPublisher struct {
	events []Event
}

func (r *recordingPublisher) PublishQuery(_ context.Context, evt Event) {
	r.events = append(r.events, evt)
}

func TestSubmitPublishesQueryEvent(t *testing.T) {
	gate := &fakeGate{decision: allowed(5, 0)}
	retriever := &fakeRetriever{passages: []domain.Passage{passage("ctx", "doc.md")}}
	pub := &recordingPublisher{}

	o := NewOrchestrator(gate, retriever, &fakeDispatcher{answer: "ok"}, &fakeConversations{}, zap.NewNop(), WithEvents(pub))
	_, err := o.Submit(context.Background(), domain.RegisteredIdentity("u1"), "q", 1, "s1")
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "u1", pub.events[0].UserID)
	assert.True(t, pub.events[0].Answered)
	assert.True(t, pub.events[0].Persisted)
}
