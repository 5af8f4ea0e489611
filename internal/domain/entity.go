package domain

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) String() string {
	return string(r)
}

// Identity is either a registered account or an anonymous caller keyed by
// network address. Exactly one of the two fields is set.
type Identity struct {
	UserID  string
	Address string
}

func RegisteredIdentity(userID string) Identity {
	return Identity{UserID: userID}
}

func AnonymousIdentity(address string) Identity {
	return Identity{Address: address}
}

func (i Identity) Registered() bool {
	return i.UserID != ""
}

// User 账户实体，配额计数器直接挂在账户记录上
type User struct {
	ID             string
	Email          string
	FullName       string
	HashedPassword string
	IsActive       bool
	QueryCount     int
	LimitResetTime time.Time
	LastLogin      *time.Time
	CreatedAt      time.Time
}

// Session 会话实体 (Aggregate Root)
type Session struct {
	ID           string
	OwnerID      string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	IsActive     bool
	IsPinned     bool
	IsArchived   bool
	DeletedAt    *time.Time
}

// Message 消息实体，append-only
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Timestamp time.Time
	Sources   []Source
}

func (m *Message) IsUser() bool {
	return m.Role == RoleUser
}

// Source points back at the passage an answer was grounded on.
type Source struct {
	Locator string `json:"source"`
	ChunkNo int    `json:"chunk_no"`
	Snippet string `json:"snippet"`
}

// Passage is one ranked retrieval hit.
type Passage struct {
	Content string
	Locator string
	ChunkNo int
}

// Document 知识库文档分块
type Document struct {
	ID        string
	Source    string
	ChunkNo   int
	Content   string
	CreatedAt time.Time
}
