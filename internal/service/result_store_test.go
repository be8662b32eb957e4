package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfall/speakscore/internal/client"
	"github.com/windfall/speakscore/internal/errors"
)

func newResultStore(t *testing.T, ttl time.Duration) (*RedisResultStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	redisClient, err := client.NewRedisClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	return NewRedisResultStore(redisClient, ttl), mr
}

func TestRedisResultStore_SaveAndGet(t *testing.T) {
	store, mr := newResultStore(t, time.Hour)
	ctx := context.Background()

	text := "I goes to school."
	result := &AssessmentResult{
		ID:            "a1",
		Transcription: &text,
		Analysis: Analysis{
			Scores:   map[Criterion]float64{Pronunciation: 7, Vocabulary: 6, Fluency: 8, Grammer: 4},
			Feedback: "Overall Assessment:\nGood.",
		},
	}
	require.NoError(t, store.Save(ctx, "a1", result))
	assert.True(t, mr.Exists(resultKeyPrefix+"a1"))
	assert.Equal(t, time.Hour, mr.TTL(resultKeyPrefix+"a1"))

	loaded, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", loaded.ID)
	require.NotNil(t, loaded.Transcription)
	assert.Equal(t, text, *loaded.Transcription)
	assert.Equal(t, result.Analysis, loaded.Analysis)
}

func TestRedisResultStore_Expired(t *testing.T) {
	store, mr := newResultStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a2", &AssessmentResult{Analysis: Analysis{Feedback: "x"}}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "a2")
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
}

func TestRedisResultStore_Unavailable(t *testing.T) {
	store, mr := newResultStore(t, time.Minute)
	mr.Close()

	err := store.Save(context.Background(), "a3", &AssessmentResult{})
	assert.True(t, errors.HasCode(err, errors.ErrStorageService))
}
