package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/authflow/domain"
	"github.com/comptoir-labs/comptoir/internal/authflow/password"
	"github.com/comptoir-labs/comptoir/internal/config"
	"github.com/comptoir-labs/comptoir/internal/credentials"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	"github.com/comptoir-labs/comptoir/internal/ratelimit"
	tenantdomain "github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"github.com/comptoir-labs/comptoir/internal/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type service struct {
	users   identitydomain.Repository
	tokens  identitydomain.RefreshTokenRepository
	totps   identitydomain.TOTPRepository
	tenants tenantdomain.Repository
	codec   *token.Codec
	creds   *credentials.Store
	limiter *ratelimit.Limiter
	node    *snowflake.Node
	issuer  string
	log     *zap.Logger
	now     func() time.Time
}

func New(
	cfg config.Config,
	users identitydomain.Repository,
	tokens identitydomain.RefreshTokenRepository,
	totps identitydomain.TOTPRepository,
	tenants tenantdomain.Repository,
	codec *token.Codec,
	creds *credentials.Store,
	limiter *ratelimit.Limiter,
	node *snowflake.Node,
	log *zap.Logger,
) domain.Service {
	return &service{
		users:   users,
		tokens:  tokens,
		totps:   totps,
		tenants: tenants,
		codec:   codec,
		creds:   creds,
		limiter: limiter,
		node:    node,
		issuer:  cfg.AppName,
		log:     log.Named("authflow.service"),
		now:     time.Now,
	}
}

func (s *service) Login(ctx context.Context, in domain.LoginInput) (*domain.LoginResult, error) {
	decision, _ := s.limiter.Admit(ctx, ratelimit.ScopeLogin, in.IP)
	if !decision.Allowed {
		return nil, &domain.RateLimitedError{Scope: ratelimit.ScopeLogin.Name, RetryAfter: decision.RetryAfter}
	}

	login := strings.ToLower(strings.TrimSpace(in.Login))
	user, err := s.users.FindByLogin(ctx, login)
	if errors.Is(err, identitydomain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive || user.PasswordHash == nil {
		return nil, domain.ErrInvalidCredentials
	}

	needsRehash, err := password.Verify(in.Password, *user.PasswordHash)
	if errors.Is(err, password.ErrMismatch) {
		s.log.Info("login failed", zap.String("login", login), zap.String("ip", in.IP))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if needsRehash {
		if fresh, hashErr := password.Hash(in.Password); hashErr == nil {
			if updErr := s.users.UpdateFields(ctx, user.ID, map[string]any{"password_hash": fresh}); updErr != nil {
				s.log.Warn("password rehash failed", zap.Int64("user_id", int64(user.ID)), zap.Error(updErr))
			}
		}
	}

	enabled, err := s.TwoFAEnabled(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if enabled {
		pending, err := s.codec.Issue(token.TypePending2FA, user.ID.String(), token.Claims{
			UID:   user.ID.String(),
			Login: user.Login,
		})
		if err != nil {
			return nil, err
		}
		return &domain.LoginResult{Requires2FA: true, PendingToken: pending}, nil
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResult{Pair: pair}, nil
}

func (s *service) Verify2FA(ctx context.Context, pendingToken, code, ip string) (*domain.TokenPair, error) {
	claims, err := s.codec.Decode(pendingToken, token.TypePending2FA)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}

	decision, _ := s.limiter.Admit(ctx, ratelimit.ScopeTwoFA, userID.String())
	if !decision.Allowed {
		return nil, &domain.RateLimitedError{Scope: ratelimit.ScopeTwoFA.Name, RetryAfter: decision.RetryAfter}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	cfg, err := s.totps.FindByUser(ctx, userID)
	if err != nil || !cfg.IsEnabled {
		return nil, domain.ErrUnauthenticated
	}

	ok, err := s.checkCode(ctx, cfg, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Info("2fa verification failed", zap.Int64("user_id", int64(userID)), zap.String("ip", ip))
		return nil, domain.ErrInvalidCode
	}
	return s.issuePair(ctx, user)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	row, err := s.tokens.FindByJTI(ctx, claims.ID)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	if row.RevokedAt != nil || row.ExpiresAt.Before(s.now().UTC()) {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, row.UserID)
	if err != nil || !user.IsActive {
		return nil, domain.ErrUnauthenticated
	}

	// rotation: the presented token dies with this exchange
	if err := s.tokens.Revoke(ctx, claims.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.issuePair(ctx, user)
}

func (s *service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.codec.Decode(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil
	}
	return s.tokens.Revoke(ctx, claims.ID, s.now().UTC())
}

func (s *service) Setup2FA(ctx context.Context, userID snowflake.ID) (*domain.TwoFASetup, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	existing, err := s.totps.FindByUser(ctx, userID)
	if err != nil && !errors.Is(err, identitydomain.ErrTOTPNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsEnabled {
		return nil, domain.ErrTwoFAEnabled
	}

	secret, err := generateTOTPSecret()
	if err != nil {
		return nil, err
	}
	encrypted, err := s.creds.Encrypt(secret)
	if err != nil {
		return nil, err
	}
	codes, hashes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}
	hashJSON, err := json.Marshal(hashes)
	if err != nil {
		return nil, err
	}

	cfg := &identitydomain.TOTPConfig{
		ID:              s.node.Generate(),
		UserID:          userID,
		EncryptedSecret: encrypted,
		BackupCodes:     datatypes.JSON(hashJSON),
		IsEnabled:       false,
	}
	if err := s.totps.Upsert(ctx, cfg); err != nil {
		return nil, err
	}

	return &domain.TwoFASetup{
		Secret:      secret,
		OtpauthURI:  provisionURI(s.issuer, user.Login, secret),
		BackupCodes: codes,
	}, nil
}

func (s *service) Confirm2FA(ctx context.Context, userID snowflake.ID, code string) error {
	cfg, err := s.totps.FindByUser(ctx, userID)
	if errors.Is(err, identitydomain.ErrTOTPNotFound) {
		return domain.ErrTwoFANotConfigured
	}
	if err != nil {
		return err
	}
	if cfg.IsEnabled {
		return domain.ErrTwoFAEnabled
	}

	secret, err := s.creds.Decrypt(cfg.EncryptedSecret)
	if err != nil {
		return err
	}
	if !verifyTOTP(secret, code, s.now()) {
		return domain.ErrInvalidCode
	}

	now := s.now().UTC()
	return s.totps.UpdateTOTPFields(ctx, userID, map[string]any{
		"is_enabled": true,
		"enabled_at": now,
	})
}

func (s *service) Disable2FA(ctx context.Context, userID snowflake.ID, code string) error {
	cfg, err := s.totps.FindByUser(ctx, userID)
	if errors.Is(err, identitydomain.ErrTOTPNotFound) {
		return domain.ErrTwoFANotConfigured
	}
	if err != nil {
		return err
	}
	ok, err := s.checkCode(ctx, cfg, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidCode
	}
	return s.totps.DeleteByUser(ctx, userID)
}

func (s *service) RegenerateBackupCodes(ctx context.Context, userID snowflake.ID, code string) ([]string, error) {
	cfg, err := s.totps.FindByUser(ctx, userID)
	if errors.Is(err, identitydomain.ErrTOTPNotFound) {
		return nil, domain.ErrTwoFANotConfigured
	}
	if err != nil {
		return nil, err
	}
	if !cfg.IsEnabled {
		return nil, domain.ErrTwoFANotConfigured
	}

	secret, err := s.creds.Decrypt(cfg.EncryptedSecret)
	if err != nil {
		return nil, err
	}
	// regeneration requires the live factor, not a backup code
	if !verifyTOTP(secret, code, s.now()) {
		return nil, domain.ErrInvalidCode
	}

	codes, hashes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}
	hashJSON, err := json.Marshal(hashes)
	if err != nil {
		return nil, err
	}
	if err := s.totps.UpdateTOTPFields(ctx, userID, map[string]any{
		"backup_codes": datatypes.JSON(hashJSON),
	}); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *service) TwoFAEnabled(ctx context.Context, userID snowflake.ID) (bool, error) {
	cfg, err := s.totps.FindByUser(ctx, userID)
	if errors.Is(err, identitydomain.ErrTOTPNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cfg.IsEnabled, nil
}

// checkCode accepts a live TOTP code or an unused backup code. A matched
// backup code is removed from the stored hash list.
func (s *service) checkCode(ctx context.Context, cfg *identitydomain.TOTPConfig, code string) (bool, error) {
	secret, err := s.creds.Decrypt(cfg.EncryptedSecret)
	if err != nil {
		return false, err
	}
	if verifyTOTP(secret, code, s.now()) {
		return true, nil
	}

	var hashes []string
	if len(cfg.BackupCodes) > 0 {
		if err := json.Unmarshal(cfg.BackupCodes, &hashes); err != nil {
			return false, err
		}
	}
	target := hashBackupCode(code)
	for i, h := range hashes {
		if h != target {
			continue
		}
		remaining := append(append([]string(nil), hashes[:i]...), hashes[i+1:]...)
		hashJSON, err := json.Marshal(remaining)
		if err != nil {
			return false, err
		}
		if err := s.totps.UpdateTOTPFields(ctx, cfg.UserID, map[string]any{
			"backup_codes": datatypes.JSON(hashJSON),
		}); err != nil {
			return false, err
		}
		s.log.Info("backup code consumed",
			zap.Int64("user_id", int64(cfg.UserID)),
			zap.Int("remaining", len(remaining)),
		)
		return true, nil
	}
	return false, nil
}

func (s *service) issuePair(ctx context.Context, user *identitydomain.User) (*domain.TokenPair, error) {
	var tenantID, tenantDomain string
	tenant, err := s.tenants.FindByCompany(ctx, user.CompanyID)
	if err == nil {
		tenantID = tenant.ID.String()
		tenantDomain = tenant.Domain
	} else if !errors.Is(err, tenantdomain.ErrTenantUnknown) {
		return nil, err
	}

	base := token.Claims{
		UID:          user.ID.String(),
		Login:        user.Login,
		TenantID:     tenantID,
		TenantDomain: tenantDomain,
	}
	access, err := s.codec.Issue(token.TypeAccess, user.ID.String(), base)
	if err != nil {
		return nil, err
	}

	jti := uuid.NewString()
	refreshClaims := base
	refreshClaims.RegisteredClaims.ID = jti
	refresh, err := s.codec.Issue(token.TypeRefresh, user.ID.String(), refreshClaims)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.CreateToken(ctx, &identitydomain.RefreshToken{
		ID:        s.node.Generate(),
		JTI:       jti,
		UserID:    user.ID,
		ExpiresAt: s.now().UTC().Add(s.codec.RefreshTTL()),
	}); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}
