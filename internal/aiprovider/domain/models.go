// Package domain contains the AI provider registry records. API keys are
// stored encrypted and leave the package only as masked previews.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Kind enumerates the supported upstream vendors.
type Kind string

const (
	KindGroq   Kind = "groq"
	KindClaude Kind = "claude"
	KindOpenAI Kind = "openai"
)

// Kinds lists every supported vendor.
var Kinds = []Kind{KindGroq, KindClaude, KindOpenAI}

func (k Kind) Valid() bool {
	return k == KindGroq || k == KindClaude || k == KindOpenAI
}

// Probe outcomes recorded in TestResult.
const (
	TestResultSuccess = "success"
	TestResultTimeout = "timeout"
)

// Provider is one configured upstream. Priority orders selection, lower
// wins. The metric columns are running aggregates updated on every
// request outcome.
type Provider struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	Name            string       `gorm:"type:text;not null"`
	Kind            Kind         `gorm:"type:text;not null"`
	EncryptedAPIKey string       `gorm:"column:encrypted_api_key;type:text;not null"`
	Enabled         bool         `gorm:"not null;default:false"`
	Priority        int          `gorm:"not null;default:100"`
	Model           string       `gorm:"type:text"`
	MaxTokens       int          `gorm:"column:max_tokens;not null;default:0"`
	Temperature     float64      `gorm:"not null;default:0"`
	TotalRequests   int64        `gorm:"column:total_requests;not null;default:0"`
	FailedRequests  int64        `gorm:"column:failed_requests;not null;default:0"`
	TotalTokens     int64        `gorm:"column:total_tokens;not null;default:0"`
	TotalCost       float64      `gorm:"column:total_cost;not null;default:0"`
	AvgLatencyMS    float64      `gorm:"column:avg_latency_ms;not null;default:0"`
	LastTestedAt    *time.Time   `gorm:"column:last_tested_at"`
	TestResult      string       `gorm:"column:test_result;type:text"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Provider) TableName() string { return "ai_providers" }
