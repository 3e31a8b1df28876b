package users

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smartpark-backend/pkg/auth"
	"github.com/angelmondragon/smartpark-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

func newTestService(t *testing.T, ttl time.Duration) (Service, *Repository) {
	t.Helper()
	client := dbtest.NewSQLite(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, ttl, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return svc, repo
}

func claimsFor(sub, email, role, name string) *auth.AccessTokenClaims {
	return &auth.AccessTokenClaims{
		Email:            email,
		UserMetadata:     auth.UserMetadata{Role: role, FullName: name},
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	}
}

func TestSyncCreatesProfileOnFirstSight(t *testing.T) {
	svc, repo := newTestService(t, 0)
	ctx := context.Background()

	user, err := svc.Sync(ctx, claimsFor("sub-1", "Owner@Example.com", "owner", " Ada Owner "))
	require.NoError(t, err)
	assert.Equal(t, "sub-1", user.ID)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.Equal(t, enums.UserRoleOwner, user.Role)
	assert.Equal(t, "Ada Owner", user.FullName)

	stored, err := repo.FindByID(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, user.Email, stored.Email)
}

func TestSyncDefaultsUnknownRoleToUser(t *testing.T) {
	svc, _ := newTestService(t, 0)

	user, err := svc.Sync(context.Background(), claimsFor("sub-2", "x@example.com", "admin", ""))
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleUser, user.Role)
}

func TestSyncDoesNotUpdateExistingProfile(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	_, err := svc.Sync(ctx, claimsFor("sub-3", "a@example.com", "user", "First"))
	require.NoError(t, err)

	user, err := svc.Sync(ctx, claimsFor("sub-3", "a@example.com", "owner", "Second"))
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleUser, user.Role)
	assert.Equal(t, "First", user.FullName)
}

func TestSyncServesFromCache(t *testing.T) {
	svc, repo := newTestService(t, time.Minute)
	ctx := context.Background()

	_, err := svc.Sync(ctx, claimsFor("sub-4", "c@example.com", "owner", "Cached"))
	require.NoError(t, err)

	require.NoError(t, repo.db.Exec("DELETE FROM profiles").Error)

	user, err := svc.Sync(ctx, claimsFor("sub-4", "c@example.com", "owner", "Cached"))
	require.NoError(t, err)
	assert.Equal(t, "Cached", user.FullName)
}

func TestSyncRejectsEmailOwnedByAnotherSubject(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()

	_, err := svc.Sync(ctx, claimsFor("sub-5", "dup@example.com", "user", ""))
	require.NoError(t, err)

	_, err = svc.Sync(ctx, claimsFor("sub-6", "dup@example.com", "user", ""))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestSyncRequiresSubject(t *testing.T) {
	svc, _ := newTestService(t, 0)

	_, err := svc.Sync(context.Background(), claimsFor("", "n@example.com", "user", ""))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestFromModelNil(t *testing.T) {
	assert.Nil(t, FromModel(nil))
}
