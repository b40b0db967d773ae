package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/identity/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) (domain.Repository, domain.RefreshTokenRepository, domain.TOTPRepository) {
	r := &repo{db: db}
	return r, r, r
}

func (r *repo) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrUserExists
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) FindByLogin(ctx context.Context, login string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("login = ?", login).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) LowestActiveID(ctx context.Context, companyID snowflake.ID) (snowflake.ID, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ? AND is_shared = ?", companyID, true, false).
		Order("id asc").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

func (r *repo) ListActive(ctx context.Context, companyID snowflake.ID) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ? AND is_shared = ?", companyID, true, false).
		Order("id asc").
		Find(&users).Error
	return users, err
}

func (r *repo) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *repo) CreateToken(ctx context.Context, tok *domain.RefreshToken) error {
	return r.db.WithContext(ctx).Create(tok).Error
}

func (r *repo) FindByJTI(ctx context.Context, jti string) (*domain.RefreshToken, error) {
	var tok domain.RefreshToken
	err := r.db.WithContext(ctx).Where("jti = ?", jti).First(&tok).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (r *repo) Revoke(ctx context.Context, jti string, revokedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("jti = ? AND revoked_at IS NULL", jti).
		Update("revoked_at", revokedAt).Error
}

func (r *repo) RevokeAllForUser(ctx context.Context, userID snowflake.ID, revokedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", revokedAt).Error
}

func (r *repo) Upsert(ctx context.Context, cfg *domain.TOTPConfig) error {
	existing, err := r.FindByUser(ctx, cfg.UserID)
	if errors.Is(err, domain.ErrTOTPNotFound) {
		return r.db.WithContext(ctx).Create(cfg).Error
	}
	if err != nil {
		return err
	}
	cfg.ID = existing.ID
	cfg.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(cfg).Error
}

func (r *repo) FindByUser(ctx context.Context, userID snowflake.ID) (*domain.TOTPConfig, error) {
	var cfg domain.TOTPConfig
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repo) UpdateTOTPFields(ctx context.Context, userID snowflake.ID, fields map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&domain.TOTPConfig{}).Where("user_id = ?", userID).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrTOTPNotFound
	}
	return nil
}

func (r *repo) DeleteByUser(ctx context.Context, userID snowflake.ID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.TOTPConfig{}).Error
}
