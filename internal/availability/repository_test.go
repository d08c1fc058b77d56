package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/telehealth-scheduling/internal/storage"
	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

func TestProfileRepositorySaveAssignsIDAndTimestamps(t *testing.T) {
	repo := NewProfileRepository(storage.NewMemoryStore(), nil, logging.Default())
	ctx := context.Background()

	profile := NewProfile("doc-1")
	require.NoError(t, repo.Save(ctx, profile))

	assert.NotEmpty(t, profile.ID)
	assert.False(t, profile.CreatedAt.IsZero())
	assert.False(t, profile.UpdatedAt.IsZero())

	got, err := repo.GetByDoctor(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, got.ID)
	require.NotNil(t, got.WeeklySchedule.Sunday)
	assert.False(t, got.WeeklySchedule.Sunday.IsAvailable)
}

func TestProfileRepositoryGetByDoctorNotFound(t *testing.T) {
	repo := NewProfileRepository(storage.NewMemoryStore(), nil, logging.Default())

	_, err := repo.GetByDoctor(context.Background(), "doc-404")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProfileRepositoryReadThroughCache(t *testing.T) {
	store := storage.NewMemoryStore()
	cache := NewProfileCache(newTestRedis(t), time.Minute)
	repo := NewProfileRepository(store, cache, logging.Default())
	ctx := context.Background()

	profile := NewProfile("doc-1")
	require.NoError(t, repo.Save(ctx, profile))

	// First read populates the cache.
	_, err := repo.GetByDoctor(ctx, "doc-1")
	require.NoError(t, err)

	cached, err := cache.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, profile.ID, cached.ID)
}

func TestProfileRepositorySaveInvalidatesCache(t *testing.T) {
	store := storage.NewMemoryStore()
	cache := NewProfileCache(newTestRedis(t), time.Minute)
	repo := NewProfileRepository(store, cache, logging.Default())
	ctx := context.Background()

	profile := NewProfile("doc-1")
	require.NoError(t, repo.Save(ctx, profile))

	_, err := repo.GetByDoctor(ctx, "doc-1")
	require.NoError(t, err)

	profile.ConsultationFee = 900
	require.NoError(t, repo.Save(ctx, profile))

	got, err := repo.GetByDoctor(ctx, "doc-1")
	require.NoError(t, err)
	assert.EqualValues(t, 900, got.ConsultationFee, "stale cache entry must be invalidated on save")
}
