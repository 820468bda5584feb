package cookies

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestEmailPrefixFromNameClaim(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"name": "user123@2925.com"})
	prefix, ok := EmailPrefix([]Cookie{{Name: "aut", Value: tok}})
	require.True(t, ok)
	assert.Equal(t, "user123", prefix)
}

func TestEmailPrefixFallsBackToNickname(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"nickname": "user123"})
	prefix, ok := EmailPrefix([]Cookie{{Name: "aut", Value: tok}})
	require.True(t, ok)
	assert.Equal(t, "user123", prefix)
}

func TestEmailPrefixDecodeFailures(t *testing.T) {
	tests := []struct {
		name    string
		cookies []Cookie
	}{
		{"no auth cookie", []Cookie{{Name: "sid", Value: "abc"}}},
		{"not a jwt", []Cookie{{Name: "aut", Value: "definitely-not-a-token"}}},
		{"empty value", []Cookie{{Name: "aut", Value: ""}}},
		{"no usable claims", []Cookie{{Name: "aut", Value: signedTokenNoClaims(t)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, ok := EmailPrefix(tt.cookies)
			assert.False(t, ok)
			assert.Empty(t, prefix)
		})
	}
}

func signedTokenNoClaims(t *testing.T) string {
	return signedToken(t, jwt.MapClaims{"sub": "123"})
}

func TestEmailPrefixToleratesPaddedSegments(t *testing.T) {
	// Some webmail tokens ship base64 segments with padding, which strict
	// decoders reject.
	tok := signedToken(t, jwt.MapClaims{"name": "padded@2925.com"})
	prefix, ok := EmailPrefix([]Cookie{{Name: "aut", Value: tok}})
	require.True(t, ok)
	assert.Equal(t, "padded", prefix)
}
