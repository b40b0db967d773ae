package store

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	"gorm.io/gorm"
)

type gormStore struct {
	db *gorm.DB
}

// New returns the gorm-backed adapter.
func New(db *gorm.DB) (Counter, ViewRecorder) {
	s := &gormStore{db: db}
	return s, s
}

func (s *gormStore) CountProducts(ctx context.Context, companyID snowflake.ID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Product{}).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Count(&count).Error
	return count, err
}

func (s *gormStore) CountActiveUsers(ctx context.Context, companyID snowflake.ID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&identitydomain.User{}).
		Where("company_id = ? AND is_active = ? AND is_shared = ?", companyID, true, false).
		Count(&count).Error
	return count, err
}

func (s *gormStore) CountOrdersBetween(ctx context.Context, companyID snowflake.ID, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Order{}).
		Where("company_id = ? AND order_date >= ? AND order_date < ?", companyID, from, to).
		Count(&count).Error
	return count, err
}

func (s *gormStore) RecordView(ctx context.Context, companyID, productID snowflake.ID) error {
	tx := s.db.WithContext(ctx).Model(&Product{}).
		Where("id = ? AND company_id = ?", productID, companyID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
