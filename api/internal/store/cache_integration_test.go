package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hs-classifier/api/internal/hscode"
)

var samplePreds = []hscode.Prediction{
	{HSCode: "8471", Description: "ADP machines", ConfidenceScore: 0.91},
	{HSCode: "8473", Description: "Parts for 8471", ConfidenceScore: 0.07},
}

func TestClassificationRepo_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	repo := NewClassificationRepo(db, time.Hour)
	defer repo.Close()
	require.NoError(t, repo.EnsureSchema(ctx))

	key := NewKey("integration "+uuid.NewString(), "gpt", "test-model")

	_, err = repo.Find(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, repo.Upsert(ctx, key, samplePreds))
	got, err := repo.Find(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, samplePreds, got)

	updated := samplePreds[:1]
	require.NoError(t, repo.Upsert(ctx, key, updated))
	got, err = repo.Find(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	_, err = repo.PurgeOlderThan(ctx, 0)
	assert.Error(t, err)
	_, err = repo.PurgeOlderThan(ctx, 24*time.Hour)
	assert.NoError(t, err)
}

func TestRedisCache_Integration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, addr, "", 0, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	key := NewKey("integration "+uuid.NewString(), "gemini", "test-model")

	_, err = c.Find(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, c.Upsert(ctx, key, samplePreds))
	got, err := c.Find(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, samplePreds, got)
}
