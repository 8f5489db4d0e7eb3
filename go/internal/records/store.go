package records

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Record store errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrSchema            = errors.New("record does not match schema")
	ErrUnknownCollection = errors.New("unknown collection")
)

// IDField is the filter key that matches a record's own id
const IDField = "_id"

// Record is one schema-validated JSON document in a collection
type Record struct {
	ID         uuid.UUID              `json:"id"`
	Collection string                 `json:"collection"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// String returns a data field as a string, or "" if it is missing or not a string
func (r Record) String(field string) string {
	s, _ := r.Data[field].(string)
	return s
}

// Filter selects records by field equality. All entries must match.
type Filter map[string]interface{}

// Store is the record store used by the admin and ranking code
type Store interface {
	Find(ctx context.Context, collection string, filter Filter) ([]Record, error)
	FindOne(ctx context.Context, collection string, filter Filter) (Record, error)
	Insert(ctx context.Context, collection string, data map[string]interface{}) (Record, error)
	UpdateOne(ctx context.Context, collection string, filter Filter, patch map[string]interface{}) (Record, error)
	UpdateMany(ctx context.Context, collection string, filter Filter, patch map[string]interface{}) (int, error)
	Delete(ctx context.Context, collection string, filter Filter) (int, error)
}

// Matches reports whether rec satisfies every entry of the filter
func (f Filter) Matches(rec Record) bool {
	for key, want := range f {
		if key == IDField {
			if !idEquals(rec.ID, want) {
				return false
			}
			continue
		}
		got, ok := rec.Data[key]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// data returns the filter without the id key, for JSON containment queries
func (f Filter) data() map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for k, v := range f {
		if k != IDField {
			out[k] = v
		}
	}
	return out
}

// id returns the id the filter pins, if any
func (f Filter) id() (uuid.UUID, bool, error) {
	raw, ok := f[IDField]
	if !ok {
		return uuid.Nil, false, nil
	}
	switch v := raw.(type) {
	case uuid.UUID:
		return v, true, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, true, fmt.Errorf("invalid %s %q: %w", IDField, v, err)
		}
		return id, true, nil
	default:
		return uuid.Nil, true, fmt.Errorf("invalid %s type %T", IDField, raw)
	}
}

func idEquals(id uuid.UUID, want interface{}) bool {
	switch v := want.(type) {
	case uuid.UUID:
		return id == v
	case string:
		return id.String() == v
	default:
		return false
	}
}

// valuesEqual compares JSON-like values, treating all numeric types as float64
func valuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// merge returns a copy of base with patch applied on top
func merge(base, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
