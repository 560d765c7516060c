package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/errors"
)

func newTestService(t *testing.T) (*Service, *call.MockClock) {
	t.Helper()
	clock := &call.MockClock{CurrentTime: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService("test-secret", time.Hour, clock)
	require.NoError(t, err)
	return svc, clock
}

func TestNewService_RequiresSecret(t *testing.T) {
	_, err := NewService("", time.Hour, &call.MockClock{CurrentTime: time.Now()})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc, clock := newTestService(t)
	userID := uuid.New()

	token, err := svc.GenerateToken(userID, "user@example.com")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, clock.Now().Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestValidateToken_Expired(t *testing.T) {
	svc, clock := newTestService(t)

	token, err := svc.GenerateToken(uuid.New(), "user@example.com")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = svc.ValidateToken(token)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthorized))
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc, _ := newTestService(t)
	other, err := NewService("other-secret", time.Hour,
		&call.MockClock{CurrentTime: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	token, err := other.GenerateToken(uuid.New(), "user@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthorized))
}

func TestValidateToken_Garbage(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ValidateToken("not.a.token")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthorized))
}
