package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ragchat/internal/domain"
)

type UserModel struct {
	ID             string     `gorm:"primaryKey;size:36;column:id"`
	Email          string     `gorm:"uniqueIndex;size:255;not null;column:email"`
	FullName       string     `gorm:"size:255;not null;column:full_name"`
	HashedPassword string     `gorm:"size:255;not null;column:hashed_password"`
	IsActive       bool       `gorm:"not null;default:true;column:is_active"`
	QueryCount     int        `gorm:"not null;default:0;column:query_count"`
	LimitResetTime time.Time  `gorm:"column:limit_reset_time"`
	LastLogin      *time.Time `gorm:"column:last_login"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;not null;column:created_at"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToDomain() *domain.User {
	return &domain.User{
		ID:             m.ID,
		Email:          m.Email,
		FullName:       m.FullName,
		HashedPassword: m.HashedPassword,
		IsActive:       m.IsActive,
		QueryCount:     m.QueryCount,
		LimitResetTime: m.LimitResetTime,
		LastLogin:      m.LastLogin,
		CreatedAt:      m.CreatedAt,
	}
}

func toUserModel(d *domain.User) *UserModel {
	return &UserModel{
		ID:             d.ID,
		Email:          d.Email,
		FullName:       d.FullName,
		HashedPassword: d.HashedPassword,
		IsActive:       d.IsActive,
		QueryCount:     d.QueryCount,
		LimitResetTime: d.LimitResetTime,
		LastLogin:      d.LastLogin,
		CreatedAt:      d.CreatedAt,
	}
}

type UserRepository struct {
	db *Postgres
}

func NewUserRepository(db *Postgres) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(toUserModel(user)).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return m.ToDomain(), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return m.ToDomain(), nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", id).
		UpdateColumn("last_login", at).Error; err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *UserRepository) ResetQuota(ctx context.Context, id string, resetAt time.Time) error {
	if err := r.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"query_count":      0,
			"limit_reset_time": resetAt,
		}).Error; err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}
	return nil
}

func (r *UserRepository) IncrementQuota(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", id).
		UpdateColumn("query_count", gorm.Expr("query_count + 1")).Error; err != nil {
		return fmt.Errorf("failed to increment quota: %w", err)
	}
	return nil
}
