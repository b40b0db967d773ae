package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/aiprovider/domain"
	"github.com/comptoir-labs/comptoir/internal/credentials"
	"go.uber.org/zap"
)

const probeTimeout = 5 * time.Second

var defaultEndpoints = map[domain.Kind]string{
	domain.KindGroq:   "https://api.groq.com/openai/v1/models",
	domain.KindOpenAI: "https://api.openai.com/v1/models",
	domain.KindClaude: "https://api.anthropic.com/v1/models",
}

var defaultModels = map[domain.Kind]string{
	domain.KindGroq:   "llama-3.3-70b-versatile",
	domain.KindOpenAI: "gpt-4o-mini",
	domain.KindClaude: "claude-sonnet-4-5",
}

type service struct {
	repo      domain.Repository
	creds     *credentials.Store
	node      *snowflake.Node
	log       *zap.Logger
	client    *http.Client
	endpoints map[domain.Kind]string
	now       func() time.Time
}

func New(repo domain.Repository, creds *credentials.Store, node *snowflake.Node, log *zap.Logger) domain.Registry {
	return &service{
		repo:      repo,
		creds:     creds,
		node:      node,
		log:       log.Named("aiprovider.service"),
		client:    &http.Client{Timeout: probeTimeout},
		endpoints: defaultEndpoints,
		now:       time.Now,
	}
}

func (s *service) List(ctx context.Context) ([]domain.View, error) {
	providers, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.View, 0, len(providers))
	for i := range providers {
		v, err := s.view(&providers[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*domain.View, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(p)
}

func (s *service) Create(ctx context.Context, in domain.CreateInput) (*domain.View, error) {
	if !in.Kind.Valid() {
		return nil, domain.ErrUnknownKind
	}
	encrypted, err := s.creds.Encrypt(in.APIKey)
	if err != nil {
		return nil, err
	}
	model := in.Model
	if model == "" {
		model = defaultModels[in.Kind]
	}
	p := &domain.Provider{
		ID:              s.node.Generate(),
		Name:            in.Name,
		Kind:            in.Kind,
		EncryptedAPIKey: encrypted,
		Enabled:         in.Enabled,
		Priority:        in.Priority,
		Model:           model,
		MaxTokens:       in.MaxTokens,
		Temperature:     in.Temperature,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("ai provider created",
		zap.Int64("provider_id", int64(p.ID)),
		zap.String("kind", string(p.Kind)),
	)
	return s.view(p)
}

func (s *service) Update(ctx context.Context, id snowflake.ID, in domain.UpdateInput) (*domain.View, error) {
	fields := map[string]any{}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.APIKey != nil {
		encrypted, err := s.creds.Encrypt(*in.APIKey)
		if err != nil {
			return nil, err
		}
		fields["encrypted_api_key"] = encrypted
	}
	if in.Enabled != nil {
		fields["enabled"] = *in.Enabled
	}
	if in.Priority != nil {
		fields["priority"] = *in.Priority
	}
	if in.Model != nil {
		fields["model"] = *in.Model
	}
	if in.MaxTokens != nil {
		fields["max_tokens"] = *in.MaxTokens
	}
	if in.Temperature != nil {
		fields["temperature"] = *in.Temperature
	}
	if len(fields) > 0 {
		if err := s.repo.Update(ctx, id, fields); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id snowflake.ID) error {
	return s.repo.Delete(ctx, id)
}

func (s *service) TestConnection(ctx context.Context, id snowflake.ID) (*domain.View, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := s.creds.Decrypt(p.EncryptedAPIKey)
	if err != nil {
		return nil, err
	}

	start := s.now()
	result := s.probe(ctx, p.Kind, key)
	latency := s.now().Sub(start)

	fields := s.outcomeFields(p, result == domain.TestResultSuccess, 0, 0, latency)
	fields["last_tested_at"] = s.now().UTC()
	fields["test_result"] = result
	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}

	s.log.Info("ai provider probed",
		zap.Int64("provider_id", int64(id)),
		zap.String("kind", string(p.Kind)),
		zap.String("result", result),
		zap.Duration("latency", latency),
	)
	return s.Get(ctx, id)
}

// probe issues the cheapest authenticated request each vendor offers. A
// deadline hit maps to the dedicated timeout result so operators can tell
// a slow upstream from a rejected key.
func (s *service) probe(ctx context.Context, kind domain.Kind, key string) string {
	endpoint, ok := s.endpoints[kind]
	if !ok {
		return "failed: unsupported kind"
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "failed: " + err.Error()
	}
	switch kind {
	case domain.KindClaude:
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", "2023-06-01")
	default:
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.TestResultTimeout
		}
		return "failed: " + err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Sprintf("failed: HTTP %d", resp.StatusCode)
	}
	return domain.TestResultSuccess
}

func (s *service) SelectForRequest(ctx context.Context, kind domain.Kind) (*domain.Selection, error) {
	if kind != "" && !kind.Valid() {
		return nil, domain.ErrUnknownKind
	}
	providers, err := s.repo.ListEnabled(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, domain.ErrNoProvider
	}
	chosen := providers[0]
	key, err := s.creds.Decrypt(chosen.EncryptedAPIKey)
	if err != nil {
		return nil, err
	}
	return &domain.Selection{Provider: chosen, APIKey: key}, nil
}

func (s *service) RecordSuccess(ctx context.Context, id snowflake.ID, tokens int64, cost float64, latency time.Duration) error {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, id, s.outcomeFields(p, true, tokens, cost, latency))
}

func (s *service) RecordFailure(ctx context.Context, id snowflake.ID, latency time.Duration) error {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, id, s.outcomeFields(p, false, 0, 0, latency))
}

// outcomeFields folds one request outcome into the running aggregates.
// The latency mean uses (old*n + new) / (n+1) over the request count.
func (s *service) outcomeFields(p *domain.Provider, success bool, tokens int64, cost float64, latency time.Duration) map[string]any {
	n := float64(p.TotalRequests)
	latencyMS := float64(latency.Milliseconds())
	fields := map[string]any{
		"total_requests": p.TotalRequests + 1,
		"avg_latency_ms": (p.AvgLatencyMS*n + latencyMS) / (n + 1),
	}
	if success {
		fields["total_tokens"] = p.TotalTokens + tokens
		fields["total_cost"] = p.TotalCost + cost
	} else {
		fields["failed_requests"] = p.FailedRequests + 1
	}
	return fields
}

func (s *service) SeedDefaults(ctx context.Context) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for i, kind := range domain.Kinds {
		encrypted, err := s.creds.Encrypt("")
		if err != nil {
			return err
		}
		p := &domain.Provider{
			ID:              s.node.Generate(),
			Name:            strings.ToUpper(string(kind)[:1]) + string(kind)[1:],
			Kind:            kind,
			EncryptedAPIKey: encrypted,
			Enabled:         false,
			Priority:        (i + 1) * 10,
			Model:           defaultModels[kind],
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) view(p *domain.Provider) (*domain.View, error) {
	key, err := s.creds.Decrypt(p.EncryptedAPIKey)
	if err != nil {
		return nil, err
	}
	return &domain.View{
		ID:             p.ID,
		Name:           p.Name,
		Kind:           p.Kind,
		APIKeyPreview:  maskKey(key),
		Enabled:        p.Enabled,
		Priority:       p.Priority,
		Model:          p.Model,
		MaxTokens:      p.MaxTokens,
		Temperature:    p.Temperature,
		TotalRequests:  p.TotalRequests,
		FailedRequests: p.FailedRequests,
		TotalTokens:    p.TotalTokens,
		TotalCost:      p.TotalCost,
		AvgLatencyMS:   p.AvgLatencyMS,
		LastTestedAt:   p.LastTestedAt,
		TestResult:     p.TestResult,
	}, nil
}

// maskKey keeps the first and last four characters. Anything too short to
// mask safely is fully hidden.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) < 12 {
		return "••••"
	}
	return key[:4] + "…" + key[len(key)-4:]
}
