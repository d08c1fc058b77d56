package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// Repository is a typed view over a single collection. It owns the
// marshalling between entity structs (dynamodbav tags) and raw documents, so
// entity packages never touch attribute values directly.
type Repository[T any] struct {
	store      Store
	collection string
}

// NewRepository creates a typed repository for one collection.
func NewRepository[T any](store Store, collection string) *Repository[T] {
	if store == nil {
		panic("storage: store cannot be nil")
	}
	if collection == "" {
		panic("storage: collection cannot be empty")
	}
	return &Repository[T]{store: store, collection: collection}
}

// Get fetches a document by id.
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	item, err := r.store.GetItem(ctx, r.collection, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := attributevalue.UnmarshalMap(item, &v); err != nil {
		return nil, fmt.Errorf("storage: decode %s/%s: %w", r.collection, id, err)
	}
	return &v, nil
}

// Find returns all documents matching the query, in query order.
func (r *Repository[T]) Find(ctx context.Context, q Query) ([]T, error) {
	items, err := r.store.QueryItems(ctx, r.collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := attributevalue.UnmarshalMap(item, &v); err != nil {
			return nil, fmt.Errorf("storage: decode %s: %w", r.collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FindOne returns the first match or ErrNotFound.
func (r *Repository[T]) FindOne(ctx context.Context, q Query) (*T, error) {
	q.Limit = 1
	results, err := r.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("storage: find one %s: %w", r.collection, ErrNotFound)
	}
	return &results[0], nil
}

// Create inserts a new document, failing with ErrConditionFailed when the id
// is already taken.
func (r *Repository[T]) Create(ctx context.Context, id string, v *T) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s/%s: %w", r.collection, id, err)
	}
	return r.store.PutItem(ctx, r.collection, id, item, true)
}

// Put writes a document unconditionally (upsert).
func (r *Repository[T]) Put(ctx context.Context, id string, v *T) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s/%s: %w", r.collection, id, err)
	}
	return r.store.PutItem(ctx, r.collection, id, item, false)
}

// Update applies a partial change set. A non-nil guard makes the write
// conditional on the current value of one field.
func (r *Repository[T]) Update(ctx context.Context, id string, changes map[string]any, guard *Guard) error {
	set := make(Item, len(changes))
	for field, value := range changes {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return fmt.Errorf("storage: encode %s.%s: %w", r.collection, field, err)
		}
		set[field] = av
	}
	return r.store.UpdateItem(ctx, r.collection, id, set, guard)
}

// Delete removes a document by id.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.store.DeleteItem(ctx, r.collection, id)
}
