package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/aiprovider/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, p *domain.Provider) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repo) Update(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	tx := r.db.WithContext(ctx).Model(&domain.Provider{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrProviderNotFound
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Provider, error) {
	var p domain.Provider
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProviderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context) ([]domain.Provider, error) {
	var providers []domain.Provider
	err := r.db.WithContext(ctx).Order("priority asc, id asc").Find(&providers).Error
	return providers, err
}

func (r *repo) ListEnabled(ctx context.Context, kind domain.Kind) ([]domain.Provider, error) {
	q := r.db.WithContext(ctx).Where("enabled = ?", true)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var providers []domain.Provider
	err := q.Order("priority asc, id asc").Find(&providers).Error
	return providers, err
}

func (r *repo) Delete(ctx context.Context, id snowflake.ID) error {
	tx := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Provider{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrProviderNotFound
	}
	return nil
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Provider{}).Count(&count).Error
	return count, err
}
