package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MemoryStore is an in-process Store used by tests and local development. It
// honors the same conditional-write semantics as the DynamoDB adapter,
// including the atomicity of if-not-exists puts under concurrent callers.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Item
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]Item{}}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) collection(name string) map[string]Item {
	c, ok := s.collections[name]
	if !ok {
		c = map[string]Item{}
		s.collections[name] = c
	}
	return c
}

func cloneItem(item Item) Item {
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) GetItem(_ context.Context, collection, id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.collection(collection)[id]
	if !ok {
		return nil, fmt.Errorf("storage: get %s/%s: %w", collection, id, ErrNotFound)
	}
	return cloneItem(item), nil
}

func (s *MemoryStore) QueryItems(_ context.Context, collection string, q Query) ([]Item, error) {
	s.mu.Lock()
	var items []Item
	for _, item := range s.collection(collection) {
		ok, err := matches(item, q.Filters)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("storage: query %s: %w", collection, err)
		}
		if ok {
			items = append(items, cloneItem(item))
		}
	}
	s.mu.Unlock()

	return sortAndLimit(items, q), nil
}

func (s *MemoryStore) PutItem(_ context.Context, collection, id string, item Item, ifNotExists bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	if ifNotExists {
		if _, exists := c[id]; exists {
			return fmt.Errorf("storage: put %s/%s: %w", collection, id, ErrConditionFailed)
		}
	}

	stored := cloneItem(item)
	stored["id"] = &types.AttributeValueMemberS{Value: id}
	c[id] = stored
	return nil
}

func (s *MemoryStore) UpdateItem(_ context.Context, collection, id string, set Item, guard *Guard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	item, ok := c[id]
	if !ok {
		return fmt.Errorf("storage: update %s/%s: %w", collection, id, ErrConditionFailed)
	}
	if guard != nil {
		current, ok := item[guard.Field].(*types.AttributeValueMemberS)
		if !ok || current.Value != guard.Equals {
			return fmt.Errorf("storage: update %s/%s: %w", collection, id, ErrConditionFailed)
		}
	}

	updated := cloneItem(item)
	for field, value := range set {
		updated[field] = value
	}
	c[id] = updated
	return nil
}

func (s *MemoryStore) DeleteItem(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collection(collection), id)
	return nil
}

func matches(item Item, filters []Filter) (bool, error) {
	for _, f := range filters {
		attr, ok := item[f.Field]
		if !ok {
			return false, nil
		}
		switch {
		case f.Eq != nil:
			want, err := attributevalue.Marshal(f.Eq)
			if err != nil {
				return false, fmt.Errorf("marshal filter %s: %w", f.Field, err)
			}
			if !attrEqual(attr, want) {
				return false, nil
			}
		case f.GTE != nil || f.LTE != nil:
			if f.GTE != nil {
				want, err := attributevalue.Marshal(f.GTE)
				if err != nil {
					return false, fmt.Errorf("marshal filter %s: %w", f.Field, err)
				}
				if compareAttr(attr, want) < 0 {
					return false, nil
				}
			}
			if f.LTE != nil {
				want, err := attributevalue.Marshal(f.LTE)
				if err != nil {
					return false, fmt.Errorf("marshal filter %s: %w", f.Field, err)
				}
				if compareAttr(attr, want) > 0 {
					return false, nil
				}
			}
		default:
			return false, fmt.Errorf("filter %s has no predicate", f.Field)
		}
	}
	return true, nil
}

func attrEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && compareAttr(a, bv) == 0
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	default:
		return false
	}
}
