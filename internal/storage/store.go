// Package storage provides a generic document-store abstraction used by every
// persisted entity. Filters are limited to equality and two-sided ranges;
// richer query shapes belong to the caller.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("storage: document not found")
	// ErrConditionFailed indicates a conditional write lost to a concurrent
	// writer (uniqueness claim taken, or an optimistic guard mismatch).
	ErrConditionFailed = errors.New("storage: condition failed")
	// ErrUnavailable indicates a transient store failure. The outcome of the
	// attempted write is indeterminate; callers must not retry blindly.
	ErrUnavailable = errors.New("storage: store unavailable")
)

// Item is a raw document in attribute-value form.
type Item = map[string]types.AttributeValue

// Filter is a single predicate on a document field. Exactly one of Eq or a
// GTE/LTE bound pair should be set.
type Filter struct {
	Field string
	Eq    any
	GTE   any
	LTE   any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Eq: value}
}

// Range builds a two-sided inclusive range filter. Either bound may be nil.
func Range(field string, gte, lte any) Filter {
	return Filter{Field: field, GTE: gte, LTE: lte}
}

// Sort orders query results by a single field.
type Sort struct {
	Field      string
	Descending bool
}

// Query combines filters with optional ordering and a limit.
type Query struct {
	Filters []Filter
	Sort    *Sort
	Limit   int
}

// Store is the document-store contract consumed by repositories.
type Store interface {
	GetItem(ctx context.Context, collection, id string) (Item, error)
	QueryItems(ctx context.Context, collection string, q Query) ([]Item, error)
	// PutItem writes a full document. With ifNotExists set, the write fails
	// with ErrConditionFailed when a document with the same id already exists.
	PutItem(ctx context.Context, collection, id string, item Item, ifNotExists bool) error
	// UpdateItem applies a partial set of attribute changes. A non-nil guard
	// makes the write conditional on the current value of a single field.
	UpdateItem(ctx context.Context, collection, id string, set Item, guard *Guard) error
	DeleteItem(ctx context.Context, collection, id string) error
}

// Guard is an optimistic concurrency check: the update only applies while the
// named field still holds the expected value.
type Guard struct {
	Field  string
	Equals string
}

func unavailable(op, collection string, err error) error {
	return fmt.Errorf("storage: %s %s: %w", op, collection, errors.Join(ErrUnavailable, err))
}

// compareAttr orders two scalar attribute values. Strings compare lexically,
// numbers numerically; mismatched or non-scalar types compare equal.
func compareAttr(a, b types.AttributeValue) int {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(av.Value, bv.Value)
		}
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			af, errA := strconv.ParseFloat(av.Value, 64)
			bf, errB := strconv.ParseFloat(bv.Value, 64)
			if errA == nil && errB == nil {
				switch {
				case af < bf:
					return -1
				case af > bf:
					return 1
				}
			}
		}
	case *types.AttributeValueMemberBOOL:
		if bv, ok := b.(*types.AttributeValueMemberBOOL); ok {
			switch {
			case !av.Value && bv.Value:
				return -1
			case av.Value && !bv.Value:
				return 1
			}
		}
	}
	return 0
}

// sortAndLimit applies query ordering and the result cap client-side. The
// store layer never assumes server-side sorting capability.
func sortAndLimit(items []Item, q Query) []Item {
	if q.Sort != nil {
		field := q.Sort.Field
		sort.SliceStable(items, func(i, j int) bool {
			a, okA := items[i][field]
			b, okB := items[j][field]
			if !okA || !okB {
				return okB && !okA
			}
			if q.Sort.Descending {
				return compareAttr(a, b) > 0
			}
			return compareAttr(a, b) < 0
		})
	}
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items
}
