package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/cache"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
)

const DefaultProfileTTL = 5 * time.Minute

// ProfileService reads the public view of a user through the cache.
type ProfileService struct {
	repos repomanager.RepositoryManager
	cache *cache.Aside
	ttl   time.Duration
}

func NewProfileService(d Deps, ttl time.Duration) *ProfileService {
	aside := d.Cache
	if aside == nil {
		logger := d.Logger
		if logger == nil {
			logger = logging.Nop{}
		}
		aside = cache.NewAside(nil, logger, d.Metrics)
	}
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return &ProfileService{repos: d.Repos, cache: aside, ttl: ttl}
}

// Profile returns common.ErrorNotFound for an unknown id.
func (s *ProfileService) Profile(ctx context.Context, userID int64) (*models.Profile, error) {
	p, err := cache.GetOrSet(ctx, s.cache, ProfileCacheKey(userID), s.ttl, func(ctx context.Context) (models.Profile, error) {
		user, err := s.repos.Users().GetByID(ctx, userID)
		if err != nil {
			return models.Profile{}, err
		}
		return user.Profile(), nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
