package onboarding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Store persists onboarding flow state per account.
type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewStore creates an onboarding state store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{
		redis:  redisClient,
		tracer: otel.Tracer("orthopulse.internal.onboarding.state"),
	}
}

func (s *Store) key(accountID string) string {
	return fmt.Sprintf("onboarding:state:%s", accountID)
}

// Get retrieves the account's flow state, or nil when no flow exists.
func (s *Store) Get(ctx context.Context, accountID string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.get_state")
	defer span.End()

	data, err := s.redis.Get(ctx, s.key(accountID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("onboarding: get state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("onboarding: unmarshal state: %w", err)
	}
	return &state, nil
}

// Set saves the flow state.
func (s *Store) Set(ctx context.Context, state *State) error {
	ctx, span := s.tracer.Start(ctx, "onboarding.set_state")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("onboarding: marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(state.AccountID), data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("onboarding: set state: %w", err)
	}
	return nil
}

// Delete destroys the flow record, used when onboarding completes.
func (s *Store) Delete(ctx context.Context, accountID string) error {
	ctx, span := s.tracer.Start(ctx, "onboarding.delete_state")
	defer span.End()

	if err := s.redis.Del(ctx, s.key(accountID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("onboarding: delete state: %w", err)
	}
	return nil
}
