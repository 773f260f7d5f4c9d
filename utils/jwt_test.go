package utils

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudapp/socialforum/models"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret-for-jwt-tests")
	os.Setenv("S3_BUCKET", "test-bucket")
	os.Exit(m.Run())
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("alice", models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, string(models.RoleAdmin), claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("bob", models.RoleUser, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseTokenTamperedSignature(t *testing.T) {
	token, err := GenerateToken("carol", models.RoleUser, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = ParseToken(tampered)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestParseTokenWrongSecret(t *testing.T) {
	claims := Claims{
		Role: string(models.RoleUser),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dave",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestParseTokenMalformed(t *testing.T) {
	for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := ParseToken(tok)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", tok)
	}
}
