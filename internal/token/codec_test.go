package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(Config{
		Secret:        "test-secret",
		Issuer:        "comptoir",
		Audience:      "comptoir-api",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Pending2FATTL: 5 * time.Minute,
	})
	require.NoError(t, err)
	return codec
}

func TestIssueDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	raw, err := codec.Issue(TypeAccess, "42", Claims{
		UID:          "42",
		Login:        "owner@boutique.example",
		TenantID:     "7",
		TenantDomain: "boutique.example",
	})
	require.NoError(t, err)

	claims, err := codec.Decode(raw, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UID)
	assert.Equal(t, "owner@boutique.example", claims.Login)
	assert.Equal(t, "7", claims.TenantID)
	assert.Equal(t, "boutique.example", claims.TenantDomain)
	assert.Equal(t, TypeAccess, claims.TokenType)

	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.EqualValues(t, 42, uid)
}

func TestDecodeExpired(t *testing.T) {
	codec := newTestCodec(t)

	issuedAt := time.Now().Add(-time.Hour)
	codec.now = func() time.Time { return issuedAt }
	raw, err := codec.Issue(TypeAccess, "42", Claims{UID: "42"})
	require.NoError(t, err)

	codec.now = time.Now
	_, err = codec.Decode(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestDecodeBoundaryExpiry(t *testing.T) {
	codec := newTestCodec(t)

	base := time.Now()
	codec.now = func() time.Time { return base.Add(-15*time.Minute + time.Second) }
	raw, err := codec.Issue(TypeAccess, "42", Claims{UID: "42"})
	require.NoError(t, err)

	// Valid one second before expiry.
	codec.now = func() time.Time { return base.Add(-time.Millisecond) }
	_, err = codec.Decode(raw, TypeAccess)
	require.NoError(t, err)

	codec.now = func() time.Time { return base.Add(2 * time.Second) }
	_, err = codec.Decode(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTypeConfusionRejected(t *testing.T) {
	codec := newTestCodec(t)

	for _, issued := range []Type{TypeAccess, TypeRefresh, TypePending2FA} {
		raw, err := codec.Issue(issued, "42", Claims{UID: "42"})
		require.NoError(t, err)
		for _, expected := range []Type{TypeAccess, TypeRefresh, TypePending2FA} {
			_, err := codec.Decode(raw, expected)
			if issued == expected {
				assert.NoError(t, err, "type %s under %s", issued, expected)
			} else {
				assert.ErrorIs(t, err, ErrWrongType, "type %s under %s", issued, expected)
			}
		}
	}
}

func TestDecodeRejectsForeignAlgorithm(t *testing.T) {
	codec := newTestCodec(t)

	// alg=none with a plausible payload must not pass.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UID:       "42",
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "comptoir",
			Audience:  jwt.ClaimStrings{"comptoir-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Decode(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeRejectsWrongIssuer(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec(Config{Secret: "test-secret", Issuer: "someone-else", Audience: "comptoir-api"})
	require.NoError(t, err)

	raw, err := other.Issue(TypeAccess, "42", Claims{UID: "42"})
	require.NoError(t, err)

	_, err = codec.Decode(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeRejectsFutureIssuedAt(t *testing.T) {
	codec := newTestCodec(t)

	codec.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	raw, err := codec.Issue(TypeAccess, "42", Claims{UID: "42"})
	require.NoError(t, err)

	// Validating clock is five minutes behind the issuer: iat is too far
	// in the future even after the 60s skew allowance.
	codec.now = time.Now
	_, err = codec.Decode(raw, TypeAccess)
	assert.Error(t, err)
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"abc.def.ghi", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractBearer(tc.header)
		assert.Equal(t, tc.ok, ok, "header %q", tc.header)
		assert.Equal(t, tc.want, got, "header %q", tc.header)
	}
}
