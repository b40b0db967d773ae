package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, t *domain.Tenant) error {
	err := r.db.WithContext(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrTenantExists
	}
	return err
}

func (r *repo) FindByDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.WithContext(ctx).
		Where("domain = ? OR backoffice_domain = ?", host, host).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTenantUnknown
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTenantUnknown
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) FindByCompany(ctx context.Context, companyID snowflake.ID) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTenantUnknown
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) List(ctx context.Context) ([]domain.Tenant, error) {
	var tenants []domain.Tenant
	err := r.db.WithContext(ctx).Order("id asc").Find(&tenants).Error
	return tenants, err
}
