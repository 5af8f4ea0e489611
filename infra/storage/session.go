package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ragchat/internal/domain"
)

type SessionModel struct {
	ID           string     `gorm:"primaryKey;size:36;column:id"`
	OwnerID      string     `gorm:"index:idx_sessions_owner;size:36;not null;column:owner_id"`
	Title        string     `gorm:"size:255;not null;column:title"`
	CreatedAt    time.Time  `gorm:"not null;column:created_at"`
	UpdatedAt    time.Time  `gorm:"index;not null;column:updated_at"`
	MessageCount int        `gorm:"not null;default:0;column:message_count"`
	IsActive     bool       `gorm:"index:idx_sessions_owner;not null;default:true;column:is_active"`
	IsPinned     bool       `gorm:"not null;default:false;column:is_pinned"`
	IsArchived   bool       `gorm:"not null;default:false;column:is_archived"`
	DeletedAt    *time.Time `gorm:"column:deleted_at"`
}

func (SessionModel) TableName() string {
	return "sessions"
}

func (m *SessionModel) ToDomain() *domain.Session {
	return &domain.Session{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		Title:        m.Title,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		MessageCount: m.MessageCount,
		IsActive:     m.IsActive,
		IsPinned:     m.IsPinned,
		IsArchived:   m.IsArchived,
		DeletedAt:    m.DeletedAt,
	}
}

func toSessionModel(d *domain.Session) *SessionModel {
	return &SessionModel{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		Title:        d.Title,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		MessageCount: d.MessageCount,
		IsActive:     d.IsActive,
		IsPinned:     d.IsPinned,
		IsArchived:   d.IsArchived,
		DeletedAt:    d.DeletedAt,
	}
}

type SessionRepository struct {
	db *Postgres
}

func NewSessionRepository(db *Postgres) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if err := r.db.WithContext(ctx).Create(toSessionModel(session)).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetOwned(ctx context.Context, id, owner string) (*domain.Session, error) {
	var m SessionModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, owner).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return m.ToDomain(), nil
}

func (r *SessionRepository) ListActive(ctx context.Context, owner string, includeArchived bool, limit int) ([]*domain.Session, error) {
	tx := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", owner, true)
	if !includeArchived {
		tx = tx.Where("is_archived = ?", false)
	}

	var models []*SessionModel
	if err := tx.Order("updated_at desc").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*domain.Session, len(models))
	for i, m := range models {
		sessions[i] = m.ToDomain()
	}
	return sessions, nil
}

// BumpActivity stamps updated_at and bumps message_count in a single UPDATE
// so concurrent appends to the same session never lose a count.
func (r *SessionRepository) BumpActivity(ctx context.Context, id string, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&SessionModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"updated_at":    at,
			"message_count": gorm.Expr("message_count + 1"),
		}).Error; err != nil {
		return fmt.Errorf("failed to bump session activity: %w", err)
	}
	return nil
}

// updateOwned applies a partial update scoped to (id, owner) and reports
// whether a row matched. Only ownership is checked, not is_active.
func (r *SessionRepository) updateOwned(ctx context.Context, id, owner string, fields map[string]interface{}) (bool, error) {
	fields["updated_at"] = utcNow()
	tx := r.db.WithContext(ctx).Model(&SessionModel{}).
		Where("id = ? AND owner_id = ?", id, owner).
		Updates(fields)
	if tx.Error != nil {
		return false, fmt.Errorf("failed to update session: %w", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (r *SessionRepository) SetTitle(ctx context.Context, id, owner, title string) (bool, error) {
	return r.updateOwned(ctx, id, owner, map[string]interface{}{"title": title})
}

func (r *SessionRepository) SetPinned(ctx context.Context, id, owner string, pinned bool) (bool, error) {
	return r.updateOwned(ctx, id, owner, map[string]interface{}{"is_pinned": pinned})
}

func (r *SessionRepository) SetArchived(ctx context.Context, id, owner string, archived bool) (bool, error) {
	return r.updateOwned(ctx, id, owner, map[string]interface{}{"is_archived": archived})
}

func (r *SessionRepository) SoftDelete(ctx context.Context, id, owner string, at time.Time) (bool, error) {
	return r.updateOwned(ctx, id, owner, map[string]interface{}{
		"is_active":  false,
		"deleted_at": at,
	})
}

func (r *SessionRepository) Delete(ctx context.Context, id, owner string) (bool, error) {
	tx := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, owner).
		Delete(&SessionModel{})
	if tx.Error != nil {
		return false, fmt.Errorf("failed to delete session: %w", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (r *SessionRepository) SearchTitle(ctx context.Context, owner, text string, limit int) ([]*domain.Session, error) {
	var models []*SessionModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ? AND title ILIKE ?", owner, true, "%"+text+"%").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to search sessions: %w", err)
	}

	sessions := make([]*domain.Session, len(models))
	for i, m := range models {
		sessions[i] = m.ToDomain()
	}
	return sessions, nil
}

func (r *SessionRepository) CountActive(ctx context.Context, owner string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&SessionModel{}).
		Where("owner_id = ? AND is_active = ?", owner, true).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}
