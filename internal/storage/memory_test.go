package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func TestMemoryStore_PutGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.PutItem(ctx, "appointments", "a1", Item{"status": str("pending")}, false)
	require.NoError(t, err)

	item, err := store.GetItem(ctx, "appointments", "a1")
	require.NoError(t, err)
	assert.Equal(t, "pending", item["status"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "a1", item["id"].(*types.AttributeValueMemberS).Value)
}

func TestMemoryStore_GetMissingReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetItem(context.Background(), "appointments", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_PutIfNotExistsRejectsDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutItem(ctx, "slot_claims", "c1", Item{}, true))
	err := store.PutItem(ctx, "slot_claims", "c1", Item{}, true)
	assert.ErrorIs(t, err, ErrConditionFailed)
}

func TestMemoryStore_ConcurrentClaimsAdmitExactlyOne(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.PutItem(ctx, "slot_claims", "doc#2026-09-01#09:00", Item{}, true)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrConditionFailed)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestMemoryStore_UpdateGuard(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutItem(ctx, "appointments", "a1", Item{"status": str("pending")}, false))

	err := store.UpdateItem(ctx, "appointments", "a1", Item{"status": str("confirmed")}, &Guard{Field: "status", Equals: "pending"})
	require.NoError(t, err)

	err = store.UpdateItem(ctx, "appointments", "a1", Item{"status": str("completed")}, &Guard{Field: "status", Equals: "pending"})
	assert.ErrorIs(t, err, ErrConditionFailed)

	item, err := store.GetItem(ctx, "appointments", "a1")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", item["status"].(*types.AttributeValueMemberS).Value)
}

func TestMemoryStore_QueryEqualityAndRange(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seed := []struct {
		id     string
		doctor string
		date   string
	}{
		{"a1", "doc-1", "2026-09-01"},
		{"a2", "doc-1", "2026-09-15"},
		{"a3", "doc-1", "2026-10-02"},
		{"a4", "doc-2", "2026-09-15"},
	}
	for _, s := range seed {
		require.NoError(t, store.PutItem(ctx, "appointments", s.id,
			Item{"doctorId": str(s.doctor), "appointmentDate": str(s.date)}, false))
	}

	items, err := store.QueryItems(ctx, "appointments", Query{
		Filters: []Filter{
			Eq("doctorId", "doc-1"),
			Range("appointmentDate", "2026-09-01", "2026-09-30"),
		},
		Sort: &Sort{Field: "appointmentDate"},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a1", items[0]["id"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "a2", items[1]["id"].(*types.AttributeValueMemberS).Value)
}

func TestMemoryStore_QuerySortDescendingAndLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, start := range []string{"09:00", "11:30", "10:00"} {
		require.NoError(t, store.PutItem(ctx, "appointments", start, Item{"startTime": str(start)}, false))
	}

	items, err := store.QueryItems(ctx, "appointments", Query{
		Sort:  &Sort{Field: "startTime", Descending: true},
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "11:30", items[0]["startTime"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "10:00", items[1]["startTime"].(*types.AttributeValueMemberS).Value)
}

func TestMemoryStore_DeleteReleasesClaim(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutItem(ctx, "slot_claims", "c1", Item{}, true))
	require.NoError(t, store.DeleteItem(ctx, "slot_claims", "c1"))
	assert.NoError(t, store.PutItem(ctx, "slot_claims", "c1", Item{}, true))
}
