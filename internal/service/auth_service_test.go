package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
)

func newAuthFixture(t *testing.T) (*AuthService, *memUserStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	users := newMemUserStore(&models.User{
		ID:           "u-1",
		Email:        "alice@school.org",
		PasswordHash: string(hash),
		FullName:     "Alice",
		Role:         models.RoleTeacher,
		Active:       true,
	})
	svc := NewAuthService(users, &memAuditSink{}, AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "peerobs",
	}, zap.NewNop())
	return svc, users
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "alice@school.org",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice@school.org", claims.Email)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "alice@school.org",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@school.org",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, users := newAuthFixture(t)
	users.users["u-1"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "alice@school.org",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "alice@school.org",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestChangePassword(t *testing.T) {
	svc, users := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), "u-1", models.ChangePasswordRequest{
		OldPassword: "correct-horse",
		NewPassword: "battery-staple",
	})
	require.NoError(t, err)

	stored, err := users.FindByID(context.Background(), "u-1")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("battery-staple")))

	err = svc.ChangePassword(context.Background(), "u-1", models.ChangePasswordRequest{
		OldPassword: "correct-horse",
		NewPassword: "another-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
