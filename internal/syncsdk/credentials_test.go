package syncsdk

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "user@docbox.net",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticToken("").Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestEnvToken(t *testing.T) {
	t.Setenv("DOCBOX_TEST_TOKEN", "from-env")
	tok, err := EnvToken("DOCBOX_TEST_TOKEN").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok)

	_, err = EnvToken("DOCBOX_TEST_TOKEN_UNSET").Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestParseToken(t *testing.T) {
	claims, err := ParseToken(signedToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user@docbox.net", claims.Subject)
}

func TestParseTokenExpired(t *testing.T) {
	_, err := ParseToken(signedToken(t, time.Now().Add(-time.Minute)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not-a-jwt")
	require.Error(t, err)
}

func TestValidatingProvider(t *testing.T) {
	good := &ValidatingProvider{Source: StaticToken(signedToken(t, time.Now().Add(time.Hour)))}
	tok, err := good.Token(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	stale := &ValidatingProvider{Source: StaticToken(signedToken(t, time.Now().Add(-time.Hour)))}
	_, err = stale.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}
