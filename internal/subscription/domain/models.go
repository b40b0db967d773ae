// Package domain contains the subscription records: plans and the
// per-tenant subscription rows the quota evaluator reads.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// State represents subscription lifecycle states. Only trial and active
// pass the quota gate.
type State string

const (
	StateTrial     State = "trial"
	StateActive    State = "active"
	StateSuspended State = "suspended"
	StateExpired   State = "expired"
)

// IsOperational reports whether quota checks may proceed.
func (s State) IsOperational() bool {
	return s == StateTrial || s == StateActive
}

// Plan is immutable once subscriptions reference it; new versions are
// seeded side by side. A limit of 0 means unlimited.
type Plan struct {
	ID               snowflake.ID   `gorm:"primaryKey"`
	Code             string         `gorm:"type:text;not null;uniqueIndex"`
	Name             string         `gorm:"type:text;not null"`
	MaxProducts      int64          `gorm:"column:max_products;not null;default:0"`
	MaxUsers         int64          `gorm:"column:max_users;not null;default:0"`
	MaxOrdersPerYear int64          `gorm:"column:max_orders_per_year;not null;default:0"`
	Modules          datatypes.JSON `gorm:"column:modules;type:text"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Plan) TableName() string { return "plans" }

// Subscription binds a tenant to a plan. One active subscription per
// tenant; state transitions happen only via billing events.
type Subscription struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TenantID  snowflake.ID `gorm:"column:tenant_id;not null;index"`
	PlanID    snowflake.ID `gorm:"column:plan_id;not null;index"`
	State     State        `gorm:"type:text;not null"`
	EndDate   *time.Time   `gorm:"column:end_date"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Subscription) TableName() string { return "subscriptions" }
