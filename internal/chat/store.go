package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragchat/internal/domain"
)

const (
	previewMaxLen   = 100
	listSessionsCap = 500
)

// SessionSummary is one entry in a session list or search result.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int64     `json:"message_count"`
	IsPinned     bool      `json:"is_pinned"`
	IsArchived   bool      `json:"is_archived"`
}

// Bucket is a named recency group. Buckets keep a fixed order: Today,
// Yesterday, Last 7 Days, Last 30 Days, then calendar months newest first.
type Bucket struct {
	Label    string           `json:"label"`
	Sessions []SessionSummary `json:"sessions"`
}

// Statistics summarizes an owner's active sessions.
type Statistics struct {
	TotalSessions          int64   `json:"total_chats"`
	TotalMessages          int64   `json:"total_messages"`
	AverageMessagesPerChat float64 `json:"average_messages_per_chat"`
}

// Store owns the session and message lifecycle. Multi-tenant isolation is
// enforced by filtering every mutation on the owning identity.
type Store struct {
	sessions domain.SessionRepository
	messages domain.MessageRepository
	now      func() time.Time
	log      *zap.Logger
}

type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(sessions domain.SessionRepository, messages domain.MessageRepository, log *zap.Logger, opts ...Option) *Store {
	s := &Store{
		sessions: sessions,
		messages: messages,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens a new thread for owner. When a seed message is given
// and no explicit title, the title is derived from the seed.
func (s *Store) CreateSession(ctx context.Context, owner, title, seedMessage string) (*domain.Session, error) {
	if title == "" {
		title = DefaultTitle
	}
	if seedMessage != "" && title == DefaultTitle {
		title = GenerateTitle(seedMessage)
	}

	now := s.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// ListSessions returns owner's active sessions grouped into ordered recency
// buckets, most recently updated first within each bucket.
func (s *Store) ListSessions(ctx context.Context, owner string, includeArchived bool) ([]Bucket, error) {
	sessions, err := s.sessions.ListActive(ctx, owner, includeArchived, listSessionsCap)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := s.now()
	grouped := make(map[string][]SessionSummary)
	var monthOrder []string

	for _, session := range sessions {
		summary, err := s.summarize(ctx, session)
		if err != nil {
			return nil, err
		}

		label := bucketLabel(session.UpdatedAt, now)
		if _, seen := grouped[label]; !seen && !isFixedBucket(label) {
			monthOrder = append(monthOrder, label)
		}
		grouped[label] = append(grouped[label], summary)
	}

	var buckets []Bucket
	for _, label := range fixedBuckets {
		if sessions, ok := grouped[label]; ok {
			buckets = append(buckets, Bucket{Label: label, Sessions: sessions})
		}
	}
	// Month buckets in encounter order; the repository already sorts by
	// updated_at desc, so months come out newest first.
	for _, label := range monthOrder {
		buckets = append(buckets, Bucket{Label: label, Sessions: grouped[label]})
	}
	return buckets, nil
}

func isFixedBucket(label string) bool {
	for _, b := range fixedBuckets {
		if label == b {
			return true
		}
	}
	return false
}

func (s *Store) summarize(ctx context.Context, session *domain.Session) (SessionSummary, error) {
	count, err := s.messages.CountBySession(ctx, session.ID)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("count messages: %w", err)
	}

	preview := ""
	first, err := s.messages.FirstUserMessage(ctx, session.ID)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("load preview: %w", err)
	}
	if first != nil {
		preview = first.Content
		if runes := []rune(preview); len(runes) > previewMaxLen {
			preview = string(runes[:previewMaxLen]) + ellipsis
		}
	}

	return SessionSummary{
		ID:           session.ID,
		Title:        session.Title,
		Preview:      preview,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
		MessageCount: count,
		IsPinned:     session.IsPinned,
		IsArchived:   session.IsArchived,
	}, nil
}

// GetMessages returns a session's messages in chronological order. Ownership
// is verified; soft-deleted sessions remain readable.
func (s *Store) GetMessages(ctx context.Context, sessionID, owner string, limit int) ([]*domain.Message, error) {
	session, err := s.sessions.GetOwned(ctx, sessionID, owner)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	messages, err := s.messages.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// AppendMessage adds one message to an active owned session, bumping the
// session's updated_at and message_count. With autoTitle set, the first
// user-role message ever appended overwrites the title; later appends never
// touch it again.
func (s *Store) AppendMessage(ctx context.Context, sessionID, owner string, role domain.Role, content string, sources []domain.Source, autoTitle bool) (*domain.Message, error) {
	session, err := s.sessions.GetOwned(ctx, sessionID, owner)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || !session.IsActive {
		return nil, domain.ErrNotFound
	}

	priorUserMessages := int64(-1)
	if autoTitle && role == domain.RoleUser {
		priorUserMessages, err = s.messages.CountUserMessages(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("count user messages: %w", err)
		}
	}

	now := s.now()
	msg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: now,
		Sources:   sources,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if err := s.sessions.BumpActivity(ctx, sessionID, now); err != nil {
		return nil, fmt.Errorf("bump session activity: %w", err)
	}

	if priorUserMessages == 0 {
		if _, err := s.sessions.SetTitle(ctx, sessionID, owner, GenerateTitle(content)); err != nil {
			return nil, fmt.Errorf("auto title: %w", err)
		}
	}
	return msg, nil
}

// RenameSession updates the title. Only ownership is checked, not is_active.
func (s *Store) RenameSession(ctx context.Context, sessionID, owner, title string) (bool, error) {
	return s.sessions.SetTitle(ctx, sessionID, owner, title)
}

// PinSession pins or unpins a session.
func (s *Store) PinSession(ctx context.Context, sessionID, owner string, pinned bool) (bool, error) {
	return s.sessions.SetPinned(ctx, sessionID, owner, pinned)
}

// ArchiveSession archives or unarchives a session.
func (s *Store) ArchiveSession(ctx context.Context, sessionID, owner string, archived bool) (bool, error) {
	return s.sessions.SetArchived(ctx, sessionID, owner, archived)
}

// DeleteSession soft-deletes by default, retaining messages. A permanent
// delete erases the session and every message irrecoverably.
func (s *Store) DeleteSession(ctx context.Context, sessionID, owner string, permanent bool) (bool, error) {
	if permanent {
		deleted, err := s.sessions.Delete(ctx, sessionID, owner)
		if err != nil || !deleted {
			return deleted, err
		}
		if err := s.messages.DeleteBySession(ctx, sessionID); err != nil {
			return true, fmt.Errorf("delete messages: %w", err)
		}
		return true, nil
	}
	return s.sessions.SoftDelete(ctx, sessionID, owner, s.now())
}

// SearchSessions matches text case-insensitively against titles and message
// content, then resolves the union back to owned sessions, once each, with
// fresh message counts. Result order is unspecified.
func (s *Store) SearchSessions(ctx context.Context, owner, text string, limit int) ([]SessionSummary, error) {
	titleHits, err := s.sessions.SearchTitle(ctx, owner, text, limit)
	if err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}
	contentHits, err := s.messages.SearchContent(ctx, text, limit)
	if err != nil {
		return nil, fmt.Errorf("search content: %w", err)
	}

	seen := make(map[string]bool)
	var results []SessionSummary

	add := func(session *domain.Session) error {
		if session == nil || seen[session.ID] {
			return nil
		}
		seen[session.ID] = true
		count, err := s.messages.CountBySession(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("count messages: %w", err)
		}
		results = append(results, SessionSummary{
			ID:           session.ID,
			Title:        session.Title,
			CreatedAt:    session.CreatedAt,
			UpdatedAt:    session.UpdatedAt,
			MessageCount: count,
			IsPinned:     session.IsPinned,
			IsArchived:   session.IsArchived,
		})
		return nil
	}

	for _, session := range titleHits {
		if err := add(session); err != nil {
			return nil, err
		}
	}
	// Content hits are not owner-filtered at the repository; ownership is
	// resolved here, dropping sessions that belong to someone else.
	for _, sessionID := range contentHits {
		session, err := s.sessions.GetOwned(ctx, sessionID, owner)
		if err != nil {
			return nil, fmt.Errorf("resolve session: %w", err)
		}
		if err := add(session); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Statistics reports totals over active sessions only.
func (s *Store) Statistics(ctx context.Context, owner string) (Statistics, error) {
	total, err := s.sessions.CountActive(ctx, owner)
	if err != nil {
		return Statistics{}, fmt.Errorf("count sessions: %w", err)
	}

	sessions, err := s.sessions.ListActive(ctx, owner, true, listSessionsCap*2)
	if err != nil {
		return Statistics{}, fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}

	var messages int64
	if len(ids) > 0 {
		messages, err = s.messages.CountBySessions(ctx, ids)
		if err != nil {
			return Statistics{}, fmt.Errorf("count messages: %w", err)
		}
	}

	stats := Statistics{TotalSessions: total, TotalMessages: messages}
	if total > 0 {
		stats.AverageMessagesPerChat = float64(messages) / float64(total)
	}
	return stats, nil
}
