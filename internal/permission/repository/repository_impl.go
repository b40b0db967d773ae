package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/permission/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Upsert(ctx context.Context, perm *domain.UserPermission) error {
	perm.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "tenant_id"}, {Name: "module"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_level", "page_overrides", "granted_by", "updated_at",
		}),
	}).Create(perm).Error
}

func (r *repo) Find(ctx context.Context, userID, tenantID snowflake.ID, module string) (*domain.UserPermission, error) {
	var perm domain.UserPermission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ? AND module = ?", userID, tenantID, module).
		First(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPermissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *repo) ListForUser(ctx context.Context, userID, tenantID snowflake.ID) ([]domain.UserPermission, error) {
	var perms []domain.UserPermission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Order("module asc").
		Find(&perms).Error
	return perms, err
}

func (r *repo) CountForUser(ctx context.Context, userID, tenantID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.UserPermission{}).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Count(&count).Error
	return count, err
}

func (r *repo) DeleteForUser(ctx context.Context, userID, tenantID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Delete(&domain.UserPermission{}).Error
}
