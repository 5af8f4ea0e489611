package domain

import (
	"context"
	"time"
)

// UserRepository 账户数据访问接口
// 配额字段通过原子部分更新修改，避免读改写丢失
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// ResetQuota sets query_count=0 and limit_reset_time=resetAt in one update.
	ResetQuota(ctx context.Context, id string, resetAt time.Time) error
	// IncrementQuota adds 1 to query_count unconditionally.
	IncrementQuota(ctx context.Context, id string) error
}

// SessionRepository 会话数据访问接口
// Mutating calls are scoped to (id, owner) and report whether a row matched.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	// GetOwned returns nil, nil when no session with that id belongs to owner.
	GetOwned(ctx context.Context, id, owner string) (*Session, error)
	// ListActive returns owner's active sessions ordered by updated_at desc.
	ListActive(ctx context.Context, owner string, includeArchived bool, limit int) ([]*Session, error)
	// BumpActivity stamps updated_at and increments message_count atomically.
	BumpActivity(ctx context.Context, id string, at time.Time) error
	SetTitle(ctx context.Context, id, owner, title string) (bool, error)
	SetPinned(ctx context.Context, id, owner string, pinned bool) (bool, error)
	SetArchived(ctx context.Context, id, owner string, archived bool) (bool, error)
	// SoftDelete flips is_active=false and stamps deleted_at. Messages survive.
	SoftDelete(ctx context.Context, id, owner string, at time.Time) (bool, error)
	Delete(ctx context.Context, id, owner string) (bool, error)
	SearchTitle(ctx context.Context, owner, text string, limit int) ([]*Session, error)
	CountActive(ctx context.Context, owner string) (int64, error)
}

// MessageRepository 消息数据访问接口，消息只增不改
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*Message, error)
	FirstUserMessage(ctx context.Context, sessionID string) (*Message, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	CountUserMessages(ctx context.Context, sessionID string) (int64, error)
	CountBySessions(ctx context.Context, sessionIDs []string) (int64, error)
	// SearchContent matches content case-insensitively and returns the session
	// ids of the hits. Not owner-filtered; the caller resolves the union back
	// to owned sessions.
	SearchContent(ctx context.Context, text string, limit int) ([]string, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

// DocumentRepository 知识库分块数据访问接口
type DocumentRepository interface {
	Insert(ctx context.Context, docs []*Document) error
	DeleteBySource(ctx context.Context, source string) error
	// Scan streams every chunk to fn; retrieval ranks in memory.
	Scan(ctx context.Context, fn func(*Document) error) error
	Count(ctx context.Context) (int64, error)
}
