package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ragchat/internal/domain"
)

type MessageModel struct {
	ID        string    `gorm:"primaryKey;size:36;column:id"`
	SessionID string    `gorm:"index:idx_messages_session;size:36;not null;column:session_id"`
	Role      string    `gorm:"index:idx_messages_session;size:20;not null;check:role IN ('user','assistant');column:role"`
	Content   string    `gorm:"type:text;not null;column:content"`
	Timestamp time.Time `gorm:"index;not null;column:timestamp"`
	Sources   string    `gorm:"type:text;column:sources"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain() (*domain.Message, error) {
	var sources []domain.Source
	if m.Sources != "" {
		if err := json.Unmarshal([]byte(m.Sources), &sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
	}
	return &domain.Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      domain.Role(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Sources:   sources,
	}, nil
}

func toMessageModel(d *domain.Message) (*MessageModel, error) {
	sources := ""
	if len(d.Sources) > 0 {
		b, err := json.Marshal(d.Sources)
		if err != nil {
			return nil, fmt.Errorf("encode sources: %w", err)
		}
		sources = string(b)
	}
	return &MessageModel{
		ID:        d.ID,
		SessionID: d.SessionID,
		Role:      d.Role.String(),
		Content:   d.Content,
		Timestamp: d.Timestamp,
		Sources:   sources,
	}, nil
}

type MessageRepository struct {
	db *Postgres
}

func NewMessageRepository(db *Postgres) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	m, err := toMessageModel(msg)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error) {
	var models []*MessageModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp asc").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]*domain.Message, len(models))
	for i, m := range models {
		msg, err := m.ToDomain()
		if err != nil {
			return nil, err
		}
		messages[i] = msg
	}
	return messages, nil
}

func (r *MessageRepository) FirstUserMessage(ctx context.Context, sessionID string) (*domain.Message, error) {
	var m MessageModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND role = ?", sessionID, domain.RoleUser.String()).
		Order("timestamp asc").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find first user message: %w", err)
	}
	return m.ToDomain()
}

func (r *MessageRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&MessageModel{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func (r *MessageRepository) CountUserMessages(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&MessageModel{}).
		Where("session_id = ? AND role = ?", sessionID, domain.RoleUser.String()).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count user messages: %w", err)
	}
	return count, nil
}

func (r *MessageRepository) CountBySessions(ctx context.Context, sessionIDs []string) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&MessageModel{}).
		Where("session_id IN ?", sessionIDs).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func (r *MessageRepository) SearchContent(ctx context.Context, text string, limit int) ([]string, error) {
	var sessionIDs []string
	if err := r.db.WithContext(ctx).Model(&MessageModel{}).
		Where("content ILIKE ?", "%"+text+"%").
		Limit(limit).
		Distinct().
		Pluck("session_id", &sessionIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return sessionIDs, nil
}

func (r *MessageRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&MessageModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}
