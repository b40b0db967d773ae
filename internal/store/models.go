package store

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Product carries only the columns the core touches; the full commerce
// model is owned elsewhere.
type Product struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"column:company_id;not null;index"`
	Name      string       `gorm:"type:text;not null"`
	IsActive  bool         `gorm:"column:is_active;not null;default:true"`
	ViewCount int64        `gorm:"column:view_count;not null;default:0"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }

// Order likewise: only company scoping and the order date matter here.
type Order struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"column:company_id;not null;index"`
	OrderDate time.Time    `gorm:"column:order_date;not null;index"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }
