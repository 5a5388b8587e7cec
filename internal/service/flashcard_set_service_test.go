package service

import (
	"context"
	"testing"
	"time"

	"flashcards/internal/model"
	"flashcards/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBackedSetService(t *testing.T) *flashcardSetService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewFlashcardSetService(repository.NewPathStore(client, ""), zerolog.Nop()).(*flashcardSetService)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func TestFlashcardSetService_Lifecycle(t *testing.T) {
	svc := newRedisBackedSetService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", CreateFlashcardSetInput{Title: "  "})
	assert.ErrorIs(t, err, ErrFlashcardSetTitle)

	cards := []model.Flashcard{{ID: "temp-0", Question: "Q", Answer: "A", Topic: "go", CreatedAt: 1}}
	set, err := svc.Create(ctx, "u1", CreateFlashcardSetInput{Title: "Go basics", Topic: "go", Flashcards: cards})
	require.NoError(t, err)
	_, err = uuid.Parse(set.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1700000000000), set.CreatedAt)

	got, err := svc.Get(ctx, "u1", set.ID)
	require.NoError(t, err)
	assert.Equal(t, set, got)

	_, err = svc.Get(ctx, "u2", set.ID)
	assert.ErrorIs(t, err, ErrFlashcardSetNotFound)

	sets, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, sets, 1)

	require.NoError(t, svc.Delete(ctx, "u1", set.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "u1", set.ID), ErrFlashcardSetNotFound)
}

func TestUserService_DefaultsAbsentUser(t *testing.T) {
	store := newMemoryUserStore()
	keys := newMemoryKeyStore()
	svc := NewUserService(store, NewAPIKeyService(keys, &fakeLLM{}, zerolog.Nop()))

	u, err := svc.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusUnsubscribed, u.SubscriptionStatus)
	assert.Empty(t, u.CustomerID())

	keys.keys["ghost"] = "k"
	p, err := svc.Profile(context.Background(), "ghost")
	require.NoError(t, err)
	assert.True(t, p.HasAPIKey)
}
