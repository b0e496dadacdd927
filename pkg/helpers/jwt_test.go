package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("testsecret", time.Minute)

	token, exp, err := m.GenerateAccessToken(42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	claims, err := m.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTManager("secret-a", time.Minute)
	verifier := NewJWTManager("secret-b", time.Minute)

	token, _, err := issuer.GenerateAccessToken(1)
	require.NoError(t, err)

	_, err = verifier.ParseAccessToken(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	m := NewJWTManager("testsecret", -time.Minute)

	token, _, err := m.GenerateAccessToken(1)
	require.NoError(t, err)

	_, err = m.ParseAccessToken(token)
	assert.Error(t, err)
}

func TestJWTRejectsGarbage(t *testing.T) {
	m := NewJWTManager("testsecret", time.Minute)

	_, err := m.ParseAccessToken("not.a.token")
	assert.Error(t, err)
}
