package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/errors"
)

// TokenClaims is the authenticated identity carried by a token. The user
// identifier keys all remote state.
type TokenClaims struct {
	UserID    uuid.UUID
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// Service issues and validates HMAC-signed tokens.
type Service struct {
	secret []byte
	expiry time.Duration
	clock  call.Clock
}

func NewService(secret string, expiry time.Duration, clock call.Clock) (*Service, error) {
	if secret == "" {
		return nil, errors.NewValidationError("MISSING_SECRET", "jwt secret must be configured")
	}
	return &Service{
		secret: []byte(secret),
		expiry: expiry,
		clock:  clock,
	}, nil
}

func (s *Service) GenerateToken(userID uuid.UUID, email string) (string, error) {
	now := s.clock.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			Subject:   userID.String(),
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.NewInternalError("failed to sign token").WithCause(err)
	}
	return signed, nil
}

func (s *Service) ValidateToken(tokenString string) (*TokenClaims, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.NewUnauthorizedError("unexpected signing method")
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, errors.NewUnauthorizedError("invalid or expired token").WithCause(err)
	}
	if !token.Valid {
		return nil, errors.NewUnauthorizedError("invalid token")
	}
	if c.UserID == uuid.Nil {
		return nil, errors.NewUnauthorizedError("token carries no user identity")
	}

	return &TokenClaims{
		UserID:    c.UserID,
		Email:     c.Email,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
