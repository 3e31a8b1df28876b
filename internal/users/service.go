package users

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/angelmondragon/smartpark-backend/pkg/auth"
	"github.com/angelmondragon/smartpark-backend/pkg/db"
	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

type repository interface {
	CreateIfAbsent(ctx context.Context, dto CreateUserDTO) (bool, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Service mirrors identity-provider users into local profiles on first sight.
type Service interface {
	Sync(ctx context.Context, claims *auth.AccessTokenClaims) (*models.User, error)
}

type service struct {
	repo  repository
	cache *cache.Cache
	logg  *logger.Logger
}

// NewService builds the sync service. ttl bounds how long a synced profile is
// served from memory; zero disables caching.
func NewService(repo repository, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	svc := &service{repo: repo, logg: logg}
	if ttl > 0 {
		svc.cache = cache.New(ttl, 2*ttl)
	}
	return svc, nil
}

// Sync returns the local profile for the token subject, creating it from the
// token's metadata when missing. Existing profiles are never updated.
func (s *service) Sync(ctx context.Context, claims *auth.AccessTokenClaims) (*models.User, error) {
	id := claims.UserID()
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token subject missing")
	}
	if user, ok := s.cached(id); ok {
		return user, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	switch {
	case err == nil:
		s.remember(user)
		return user, nil
	case !db.IsNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}

	created, err := s.repo.CreateIfAbsent(ctx, CreateUserDTO{
		ID:       id,
		Email:    claims.Email,
		Role:     claims.Role(),
		FullName: claims.UserMetadata.FullName,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create profile")
	}

	user, err = s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already linked to another account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	if created {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": user.ID, "role": user.Role.String()}), "user.synced")
	}
	s.remember(user)
	return user, nil
}

func (s *service) cached(id string) (*models.User, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	user := v.(models.User)
	return &user, true
}

func (s *service) remember(user *models.User) {
	if s.cache == nil || user == nil {
		return
	}
	s.cache.SetDefault(user.ID, *user)
}
