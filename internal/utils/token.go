package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ServiceTokenSubject = "devicerelay"

// ServiceTokenSigner issues short-lived HS256 tokens the relay presents to
// the persistence API.
type ServiceTokenSigner struct {
	secret  []byte
	expiry  time.Duration
	subject string
	now     func() time.Time
}

func NewServiceTokenSigner(secret string, expiry time.Duration) (*ServiceTokenSigner, error) {
	if secret == "" {
		return nil, errors.New("service token secret is required")
	}
	if expiry <= 0 {
		return nil, errors.New("service token expiry must be positive")
	}
	return &ServiceTokenSigner{
		secret:  []byte(secret),
		expiry:  expiry,
		subject: ServiceTokenSubject,
		now:     time.Now,
	}, nil
}

func (s *ServiceTokenSigner) Sign() (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   s.subject,
		"jti":   uuid.NewString(),
		"scope": "notifications:create",
		"exp":   now.Add(s.expiry).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
