package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceTokenSigner_Sign(t *testing.T) {
	signer, err := NewServiceTokenSigner("test-secret", 5*time.Minute)
	require.NoError(t, err)

	raw, err := signer.Sign()
	require.NoError(t, err)

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, ServiceTokenSubject, claims["sub"])
	assert.Equal(t, "notifications:create", claims["scope"])
	assert.NotEmpty(t, claims["jti"])
}

func TestServiceTokenSigner_Expired(t *testing.T) {
	signer, err := NewServiceTokenSigner("test-secret", time.Minute)
	require.NoError(t, err)
	signer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	raw, err := signer.Sign()
	require.NoError(t, err)

	_, err = jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestNewServiceTokenSigner_Validation(t *testing.T) {
	_, err := NewServiceTokenSigner("", time.Minute)
	assert.Error(t, err)
	_, err = NewServiceTokenSigner("secret", 0)
	assert.Error(t, err)
}
