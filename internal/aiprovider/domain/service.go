package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrProviderNotFound = errors.New("ai provider not found")
	ErrUnknownKind      = errors.New("unknown provider kind")
	ErrNoProvider       = errors.New("no enabled provider available")
)

// View is the masked representation handed to clients. The key preview
// shows first4…last4 and nothing else.
type View struct {
	ID             snowflake.ID `json:"id"`
	Name           string       `json:"name"`
	Kind           Kind         `json:"kind"`
	APIKeyPreview  string       `json:"api_key_preview"`
	Enabled        bool         `json:"enabled"`
	Priority       int          `json:"priority"`
	Model          string       `json:"model"`
	MaxTokens      int          `json:"max_tokens"`
	Temperature    float64      `json:"temperature"`
	TotalRequests  int64        `json:"total_requests"`
	FailedRequests int64        `json:"failed_requests"`
	TotalTokens    int64        `json:"total_tokens"`
	TotalCost      float64      `json:"total_cost"`
	AvgLatencyMS   float64      `json:"avg_latency_ms"`
	LastTestedAt   *time.Time   `json:"last_tested_at,omitempty"`
	TestResult     string       `json:"test_result,omitempty"`
}

type CreateInput struct {
	Name        string
	Kind        Kind
	APIKey      string
	Enabled     bool
	Priority    int
	Model       string
	MaxTokens   int
	Temperature float64
}

// UpdateInput carries optional fields; nil means leave unchanged.
type UpdateInput struct {
	Name        *string
	APIKey      *string
	Enabled     *bool
	Priority    *int
	Model       *string
	MaxTokens   *int
	Temperature *float64
}

// Selection is what a caller needs to talk to the chosen upstream. The
// decrypted key is deliberately kept out of View and only appears here.
type Selection struct {
	Provider Provider
	APIKey   string
}

type Registry interface {
	List(ctx context.Context) ([]View, error)
	Get(ctx context.Context, id snowflake.ID) (*View, error)
	Create(ctx context.Context, in CreateInput) (*View, error)
	Update(ctx context.Context, id snowflake.ID, in UpdateInput) (*View, error)
	Delete(ctx context.Context, id snowflake.ID) error
	// TestConnection probes the upstream with the stored key. The probe
	// outcome lands in last_tested_at/test_result; the call itself only
	// fails on storage errors.
	TestConnection(ctx context.Context, id snowflake.ID) (*View, error)
	// SelectForRequest picks the enabled provider with the lowest
	// priority value, ties broken by lowest id. kind filters when non-empty.
	SelectForRequest(ctx context.Context, kind Kind) (*Selection, error)
	RecordSuccess(ctx context.Context, id snowflake.ID, tokens int64, cost float64, latency time.Duration) error
	RecordFailure(ctx context.Context, id snowflake.ID, latency time.Duration) error
	// SeedDefaults inserts one disabled provider per kind if the registry
	// is empty.
	SeedDefaults(ctx context.Context) error
}

type Repository interface {
	Create(ctx context.Context, p *Provider) error
	Update(ctx context.Context, id snowflake.ID, fields map[string]any) error
	FindByID(ctx context.Context, id snowflake.ID) (*Provider, error)
	List(ctx context.Context) ([]Provider, error)
	ListEnabled(ctx context.Context, kind Kind) ([]Provider, error)
	Delete(ctx context.Context, id snowflake.ID) error
	Count(ctx context.Context) (int64, error)
}
