// Package store is the narrow adapter between the authorization core and
// the commerce tables. The core never reaches into domain records directly;
// it only counts quota-bearing resources and bumps view counters, always
// scoped by company id.
package store

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Counter exposes the only reads the quota evaluator performs.
type Counter interface {
	CountProducts(ctx context.Context, companyID snowflake.ID) (int64, error)
	CountActiveUsers(ctx context.Context, companyID snowflake.ID) (int64, error)
	CountOrdersBetween(ctx context.Context, companyID snowflake.ID, from, to time.Time) (int64, error)
}

// ViewRecorder increments a product's view counter. The caller is
// responsible for deduplication; RecordView counts unconditionally.
type ViewRecorder interface {
	RecordView(ctx context.Context, companyID, productID snowflake.ID) error
}
