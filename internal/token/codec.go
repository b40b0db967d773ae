// Package token implements the stateless JWT codec used across the
// authorization pipeline. Three token types exist: short-lived access
// tokens, long-lived refresh tokens, and five-minute pending-2FA tokens
// bridging password verification and the second factor.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
)

type Type string

const (
	TypeAccess     Type = "access"
	TypeRefresh    Type = "refresh"
	TypePending2FA Type = "pending_2fa"
)

const maxFutureIAT = 60 * time.Second

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrWrongType    = errors.New("unexpected token type")
)

// Claims is the payload carried by every comptoir token. Snowflake IDs are
// serialized as strings to survive JSON number precision.
type Claims struct {
	UID          string `json:"uid"`
	Login        string `json:"login,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
	TenantDomain string `json:"tenant_domain,omitempty"`
	TokenType    Type   `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the uid claim.
func (c *Claims) UserID() (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.UID)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}

type Config struct {
	Secret        string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Pending2FATTL time.Duration
}

// Codec signs and validates tokens with a process-wide HS256 secret.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      map[Type]time.Duration
	now      func() time.Time
}

func NewCodec(cfg Config) (*Codec, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token codec requires a signing secret")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Pending2FATTL <= 0 {
		cfg.Pending2FATTL = 5 * time.Minute
	}
	return &Codec{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl: map[Type]time.Duration{
			TypeAccess:     cfg.AccessTTL,
			TypeRefresh:    cfg.RefreshTTL,
			TypePending2FA: cfg.Pending2FATTL,
		},
		now: time.Now,
	}, nil
}

// Issue signs a token of the given type. The registered claims (iss, aud,
// sub, iat, nbf, exp) are filled from the codec config; extra carries the
// comptoir-specific claims.
func (c *Codec) Issue(typ Type, subject string, extra Claims) (string, error) {
	ttl, ok := c.ttl[typ]
	if !ok {
		return "", ErrWrongType
	}

	now := c.now().UTC()
	extra.TokenType = typ
	extra.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Audience:  jwt.ClaimStrings{c.audience},
		Subject:   subject,
		ID:        extra.RegisteredClaims.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, &extra).SignedString(c.secret)
}

// Decode validates signature, algorithm, issuer, audience, time bounds and
// (when expectType is non-empty) the token type. Expiry surfaces as
// ErrTokenExpired so callers can prompt a refresh instead of a re-login.
func (c *Codec) Decode(tokenString string, expectType Type) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(c.now().Add(maxFutureIAT)) {
		return nil, ErrInvalidToken
	}

	if expectType != "" && claims.TokenType != expectType {
		return nil, ErrWrongType
	}

	return claims, nil
}

// ExtractBearer parses an Authorization header value. Any deviation from
// "Bearer <token>" returns ok=false; a missing header is not an error.
func ExtractBearer(headerValue string) (string, bool) {
	value := strings.TrimSpace(headerValue)
	if value == "" {
		return "", false
	}
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return "", false
	}
	return tok, true
}

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.ttl[TypeAccess] }

// RefreshTTL reports the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.ttl[TypeRefresh] }
