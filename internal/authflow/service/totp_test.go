package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 appendix B vectors, truncated to 6 digits.
func TestTOTPReferenceVectors(t *testing.T) {
	secret := b32.EncodeToString([]byte("12345678901234567890"))
	cases := []struct {
		at   int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}
	for _, tc := range cases {
		assert.True(t, verifyTOTP(secret, tc.code, time.Unix(tc.at, 0)), "t=%d", tc.at)
	}
}

func TestTOTPSkewWindow(t *testing.T) {
	secret, err := generateTOTPSecret()
	require.NoError(t, err)
	raw, err := b32.DecodeString(secret)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	counter := now.Unix() / totpPeriod

	assert.True(t, verifyTOTP(secret, hotpCode(raw, counter-1), now))
	assert.True(t, verifyTOTP(secret, hotpCode(raw, counter+1), now))
	assert.False(t, verifyTOTP(secret, hotpCode(raw, counter+2), now))
}

func TestTOTPRejectsMalformedCodes(t *testing.T) {
	secret, err := generateTOTPSecret()
	require.NoError(t, err)
	now := time.Now()

	assert.False(t, verifyTOTP(secret, "12345", now))
	assert.False(t, verifyTOTP(secret, "1234567", now))
	assert.False(t, verifyTOTP(secret, "12345a", now))
	assert.False(t, verifyTOTP(secret, "", now))
	assert.False(t, verifyTOTP("not base32!!", "123456", now))
}

func TestProvisionURI(t *testing.T) {
	uri := provisionURI("comptoir", "owner@shop.test", "SECRETB32")
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/comptoir:owner@shop.test?"))
	assert.Contains(t, uri, "secret=SECRETB32")
	assert.Contains(t, uri, "issuer=comptoir")
	assert.Contains(t, uri, "digits=6")
	assert.Contains(t, uri, "period=30")
}

func TestGenerateBackupCodes(t *testing.T) {
	codes, hashes, err := generateBackupCodes()
	require.NoError(t, err)
	require.Len(t, codes, backupCodeCount)
	require.Len(t, hashes, backupCodeCount)

	seen := map[string]bool{}
	for i, code := range codes {
		assert.Regexp(t, `^[A-Z2-9]{4}-[A-Z2-9]{4}$`, code)
		assert.Equal(t, hashes[i], hashBackupCode(code))
		assert.False(t, seen[code])
		seen[code] = true
	}

	// hashing ignores the dash and case
	assert.Equal(t, hashBackupCode(codes[0]), hashBackupCode(strings.ToLower(strings.ReplaceAll(codes[0], "-", ""))))
}
