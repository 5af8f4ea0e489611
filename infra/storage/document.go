package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ragchat/internal/domain"
)

type DocumentModel struct {
	ID        string    `gorm:"primaryKey;size:36;column:id"`
	Source    string    `gorm:"index;size:255;not null;column:source"`
	ChunkNo   int       `gorm:"not null;column:chunk_no"`
	Content   string    `gorm:"type:text;not null;column:content"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null;column:created_at"`
}

func (DocumentModel) TableName() string {
	return "documents"
}

func (m *DocumentModel) ToDomain() *domain.Document {
	return &domain.Document{
		ID:        m.ID,
		Source:    m.Source,
		ChunkNo:   m.ChunkNo,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

type DocumentRepository struct {
	db *Postgres
}

func NewDocumentRepository(db *Postgres) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Insert(ctx context.Context, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]*DocumentModel, len(docs))
	for i, d := range docs {
		models[i] = &DocumentModel{
			ID:      d.ID,
			Source:  d.Source,
			ChunkNo: d.ChunkNo,
			Content: d.Content,
		}
	}
	if err := r.db.WithContext(ctx).CreateInBatches(models, 100).Error; err != nil {
		return fmt.Errorf("failed to insert documents: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteBySource(ctx context.Context, source string) error {
	if err := r.db.WithContext(ctx).
		Where("source = ?", source).
		Delete(&DocumentModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Scan(ctx context.Context, fn func(*domain.Document) error) error {
	var batch []*DocumentModel
	result := r.db.WithContext(ctx).FindInBatches(&batch, 200, func(_ *gorm.DB, _ int) error {
		for _, m := range batch {
			if err := fn(m.ToDomain()); err != nil {
				return err
			}
		}
		return nil
	})
	if result.Error != nil {
		return fmt.Errorf("failed to scan documents: %w", result.Error)
	}
	return nil
}

func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&DocumentModel{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}
