package service

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfare/internal/database"
	"wayfare/internal/models"
)

func identityFixture(t *testing.T) *IdentityService {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewIdentityService(db, logger)
}

func TestRegisterAndLoginRoundTrip(t *testing.T) {
	svc := identityFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ana Reyes", "  Ana@Example.com ", "correcthorse")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NotEmpty(t, user.PasswordHash, "hash is stored, never the password")

	got, err := svc.Login(ctx, "ANA@example.com", "correcthorse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := identityFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ana Reyes", "ana@example.com", "correcthorse")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown accounts fail the same way as bad passwords.
	_, err = svc.Login(ctx, "ghost@example.com", "correcthorse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc := identityFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "ana@example.com", "correcthorse")
	assert.True(t, IsValidation(err))

	_, err = svc.Register(ctx, "Ana", "not-an-email", "correcthorse")
	assert.True(t, IsValidation(err))

	_, err = svc.Register(ctx, "Ana", "ana@example.com", "short")
	assert.True(t, IsValidation(err))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := identityFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ana", "ana@example.com", "correcthorse")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other Ana", "ANA@example.com", "battery-staple")
	assert.True(t, IsValidation(err))
}
