package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/aiprovider/domain"
	"github.com/comptoir-labs/comptoir/internal/aiprovider/repository"
	"github.com/comptoir-labs/comptoir/internal/credentials"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newRegistry(t *testing.T) (domain.Registry, *service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Provider{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	creds, err := credentials.NewStore("test-encryption-key")
	require.NoError(t, err)

	reg := New(repository.New(db), creds, node, zaptest.NewLogger(t))
	return reg, reg.(*service)
}

func TestCreateMasksKey(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	view, err := reg.Create(ctx, domain.CreateInput{
		Name: "Primary", Kind: domain.KindGroq, APIKey: "gsk_live_abcdef123456wxyz", Enabled: true, Priority: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "gsk_…wxyz", view.APIKeyPreview)
	assert.Equal(t, "llama-3.3-70b-versatile", view.Model)

	got, err := reg.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "gsk_…wxyz", got.APIKeyPreview)
}

func TestCreateRejectsUnknownKind(t *testing.T) {
	reg, _ := newRegistry(t)
	_, err := reg.Create(context.Background(), domain.CreateInput{Name: "X", Kind: "mistral"})
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestShortKeyFullyHidden(t *testing.T) {
	reg, _ := newRegistry(t)
	view, err := reg.Create(context.Background(), domain.CreateInput{
		Name: "P", Kind: domain.KindOpenAI, APIKey: "short",
	})
	require.NoError(t, err)
	assert.Equal(t, "••••", view.APIKeyPreview)
}

func TestUpdateRotatesKey(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	view, err := reg.Create(ctx, domain.CreateInput{
		Name: "P", Kind: domain.KindOpenAI, APIKey: "sk-old-key-0000000000",
	})
	require.NoError(t, err)

	newKey := "sk-new-key-1111111111"
	enabled := true
	updated, err := reg.Update(ctx, view.ID, domain.UpdateInput{APIKey: &newKey, Enabled: &enabled})
	require.NoError(t, err)
	assert.Equal(t, "sk-n…1111", updated.APIKeyPreview)
	assert.True(t, updated.Enabled)
}

func TestDelete(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	view, err := reg.Create(ctx, domain.CreateInput{Name: "P", Kind: domain.KindClaude, APIKey: "sk-ant-xxxxxxxxxxxx"})
	require.NoError(t, err)
	require.NoError(t, reg.Delete(ctx, view.ID))

	_, err = reg.Get(ctx, view.ID)
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
	assert.ErrorIs(t, reg.Delete(ctx, view.ID), domain.ErrProviderNotFound)
}

func TestTestConnectionSuccess(t *testing.T) {
	reg, svc := newRegistry(t)
	ctx := context.Background()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	svc.endpoints = map[domain.Kind]string{domain.KindGroq: server.URL}

	view, err := reg.Create(ctx, domain.CreateInput{Name: "P", Kind: domain.KindGroq, APIKey: "gsk_probe_key_123456"})
	require.NoError(t, err)

	probed, err := reg.TestConnection(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TestResultSuccess, probed.TestResult)
	assert.NotNil(t, probed.LastTestedAt)
	assert.Equal(t, int64(1), probed.TotalRequests)
	assert.Equal(t, "Bearer gsk_probe_key_123456", gotAuth)
}

func TestTestConnectionClaudeHeaders(t *testing.T) {
	reg, svc := newRegistry(t)
	ctx := context.Background()

	var gotKey, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	svc.endpoints = map[domain.Kind]string{domain.KindClaude: server.URL}

	view, err := reg.Create(ctx, domain.CreateInput{Name: "P", Kind: domain.KindClaude, APIKey: "sk-ant-probe-123456"})
	require.NoError(t, err)

	_, err = reg.TestConnection(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-probe-123456", gotKey)
	assert.NotEmpty(t, gotVersion)
}

func TestTestConnectionRejectedKey(t *testing.T) {
	reg, svc := newRegistry(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	svc.endpoints = map[domain.Kind]string{domain.KindOpenAI: server.URL}

	view, err := reg.Create(ctx, domain.CreateInput{Name: "P", Kind: domain.KindOpenAI, APIKey: "sk-bad-key-00000000"})
	require.NoError(t, err)

	probed, err := reg.TestConnection(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed: HTTP 401", probed.TestResult)
	assert.Equal(t, int64(1), probed.FailedRequests)
}

func TestTestConnectionTimeout(t *testing.T) {
	reg, svc := newRegistry(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()
	svc.endpoints = map[domain.Kind]string{domain.KindGroq: server.URL}
	svc.client = &http.Client{Timeout: 50 * time.Millisecond}

	view, err := reg.Create(ctx, domain.CreateInput{Name: "P", Kind: domain.KindGroq, APIKey: "gsk_slow_key_123456"})
	require.NoError(t, err)

	probed, err := reg.TestConnection(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TestResultTimeout, probed.TestResult)
}

func TestSelectForRequest(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	mk := func(name string, kind domain.Kind, enabled bool, priority int) snowflake.ID {
		view, err := reg.Create(ctx, domain.CreateInput{
			Name: name, Kind: kind, APIKey: "key-" + name + "-0000000000", Enabled: enabled, Priority: priority,
		})
		require.NoError(t, err)
		return view.ID
	}

	mk("disabled-low", domain.KindGroq, false, 1)
	second := mk("groq", domain.KindGroq, true, 20)
	first := mk("claude", domain.KindClaude, true, 10)
	tie := mk("claude-tie", domain.KindClaude, true, 10)
	_ = tie

	sel, err := reg.SelectForRequest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, first, sel.Provider.ID)
	assert.Equal(t, "key-claude-0000000000", sel.APIKey)

	// kind filter skips the better-priority claude entries
	sel, err = reg.SelectForRequest(ctx, domain.KindGroq)
	require.NoError(t, err)
	assert.Equal(t, second, sel.Provider.ID)

	_, err = reg.SelectForRequest(ctx, domain.KindOpenAI)
	assert.ErrorIs(t, err, domain.ErrNoProvider)

	_, err = reg.SelectForRequest(ctx, "mistral")
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestRunningMeans(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	view, err := reg.Create(ctx, domain.CreateInput{Name: "P", Kind: domain.KindGroq, APIKey: "gsk_mean_key_123456"})
	require.NoError(t, err)

	require.NoError(t, reg.RecordSuccess(ctx, view.ID, 1000, 0.02, 100*time.Millisecond))
	require.NoError(t, reg.RecordSuccess(ctx, view.ID, 500, 0.01, 200*time.Millisecond))
	require.NoError(t, reg.RecordFailure(ctx, view.ID, 600*time.Millisecond))

	got, err := reg.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalRequests)
	assert.Equal(t, int64(1), got.FailedRequests)
	assert.Equal(t, int64(1500), got.TotalTokens)
	assert.InDelta(t, 0.03, got.TotalCost, 1e-9)
	assert.InDelta(t, 300, got.AvgLatencyMS, 0.001) // (100+200+600)/3
}

func TestSeedDefaults(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.SeedDefaults(ctx))
	views, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	kinds := map[domain.Kind]bool{}
	for _, v := range views {
		assert.False(t, v.Enabled)
		kinds[v.Kind] = true
	}
	assert.Len(t, kinds, 3)

	// idempotent once populated
	require.NoError(t, reg.SeedDefaults(ctx))
	views, err = reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, views, 3)
}
