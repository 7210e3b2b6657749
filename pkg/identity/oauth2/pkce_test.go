package oauth2

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPKCEChallenge(t *testing.T) {
	t.Parallel()

	pkce, err := NewPKCEChallenge()
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(pkce.CodeVerifier))
	wantChallenge := base64.RawURLEncoding.EncodeToString(sum[:])

	assert.Equal(t, wantChallenge, pkce.CodeChallenge)
	assert.Equal(t, "S256", pkce.CodeChallengeMethod)
	assert.Len(t, pkce.CodeChallenge, 43, "base64url-no-pad of a 32-byte SHA256 digest is 43 chars")
}

func TestPKCEChallengesAreUnique(t *testing.T) {
	t.Parallel()

	a, err := NewPKCEChallenge()
	require.NoError(t, err)
	b, err := NewPKCEChallenge()
	require.NoError(t, err)

	assert.NotEqual(t, a.CodeVerifier, b.CodeVerifier)
}
