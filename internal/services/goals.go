package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/invalidation"
	"fintrack/internal/log"
)

type Goals struct {
	api    *api.Client
	store  *cache.Store
	coord  *invalidation.Coordinator
	logger *log.Logger
}

func NewGoals(apiClient *api.Client, store *cache.Store, coord *invalidation.Coordinator, logger *log.Logger) *Goals {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentApp)
	}
	return &Goals{api: apiClient, store: store, coord: coord, logger: logger}
}

func (s *Goals) List(ctx context.Context) (core.GoalList, error) {
	key := cache.GoalsKey()
	return cache.FetchAs(ctx, s.store, key, func(ctx context.Context) (core.GoalList, error) {
		var out core.GoalList
		err := s.api.Get(ctx, key.String(), &out)
		return out, err
	})
}

func (s *Goals) Create(ctx context.Context, draft core.GoalDraft) (core.Goal, error) {
	var created core.Goal
	if err := draft.Validate(); err != nil {
		return created, err
	}

	if err := s.api.Post(ctx, "/goals", draft, &created); err != nil {
		return created, err
	}

	s.logger.InfoContext(ctx, "goal created",
		log.FieldGoalID, created.ID.String(),
		log.FieldAmount, created.TargetAmount.String())

	if err := s.coord.OnMutation(ctx, invalidation.GoalChanged); err != nil {
		return created, fmt.Errorf("invalidate after create: %w", err)
	}
	return created, nil
}

func (s *Goals) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.api.Delete(ctx, "/goals/"+id.String(), nil); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "goal deleted", log.FieldGoalID, id.String())

	if err := s.coord.OnMutation(ctx, invalidation.GoalChanged); err != nil {
		return fmt.Errorf("invalidate after delete: %w", err)
	}
	return nil
}
