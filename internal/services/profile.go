package services

import (
	"context"
	"fmt"

	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/invalidation"
	"fintrack/internal/log"
)

type Profile struct {
	api    *api.Client
	store  *cache.Store
	coord  *invalidation.Coordinator
	logger *log.Logger
}

func NewProfile(apiClient *api.Client, store *cache.Store, coord *invalidation.Coordinator, logger *log.Logger) *Profile {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentApp)
	}
	return &Profile{api: apiClient, store: store, coord: coord, logger: logger}
}

func (s *Profile) Get(ctx context.Context) (core.UserProfile, error) {
	key := cache.ProfileKey()
	return cache.FetchAs(ctx, s.store, key, func(ctx context.Context) (core.UserProfile, error) {
		var out core.UserProfile
		err := s.api.Get(ctx, key.String(), &out)
		return out, err
	})
}

// Update sends only the fields set in the patch. The updated profile comes
// back in the response and is written to the cache directly; the fan-out
// still refreshes the budget that depends on it.
func (s *Profile) Update(ctx context.Context, patch core.ProfileUpdate) (core.UserProfile, error) {
	var updated core.UserProfile
	if err := patch.Validate(); err != nil {
		return updated, err
	}

	if err := s.api.Put(ctx, "/user/profile", patch, &updated); err != nil {
		return updated, err
	}

	s.logger.InfoContext(ctx, "profile updated")

	if err := s.coord.OnMutation(ctx, invalidation.ProfileChanged); err != nil {
		return updated, fmt.Errorf("invalidate after update: %w", err)
	}
	return updated, nil
}
