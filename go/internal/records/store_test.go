package records

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		data       map[string]interface{}
		wantErr    bool
	}{
		{"participant ok", Participants, map[string]interface{}{"name": "Tombstone", "team": "Hardcore"}, false},
		{"participant extra fields allowed", Participants, map[string]interface{}{"name": "Witch Doctor", "color": "purple"}, false},
		{"participant missing name", Participants, map[string]interface{}{"team": "Hardcore"}, true},
		{"participant wrong type", Participants, map[string]interface{}{"name": 12}, true},
		{"schedule integer order", Schedules, map[string]interface{}{"event_id": "e1", "match_id": "m1", "order": 3}, false},
		{"schedule string order", Schedules, map[string]interface{}{"event_id": "e1", "match_id": "m1", "order": "3"}, true},
		{"match bad status", Matches, map[string]interface{}{"red_id": "a", "blue_id": "b", "status": "cancelled"}, true},
		{"match bad method", Matches, map[string]interface{}{"red_id": "a", "blue_id": "b", "status": MatchCompleted, "method": "tap"}, true},
		{"match ok", Matches, map[string]interface{}{"red_id": "a", "blue_id": "b", "status": MatchCompleted, "method": MethodKO, "winner_id": "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.collection, tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSchema)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchemaReportsEveryProblem(t *testing.T) {
	err := validate(Matches, map[string]interface{}{"status": "cancelled"})
	require.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "blue_id is required")
	assert.Contains(t, err.Error(), "red_id is required")
	assert.Contains(t, err.Error(), "status must be one of")
}

func TestUnknownCollection(t *testing.T) {
	s := NewMemoryStore(clockwork.NewFakeClock())
	_, err := s.Insert(context.Background(), "brackets", map[string]interface{}{})
	assert.ErrorIs(t, err, ErrUnknownCollection)
	_, err = s.Find(context.Background(), "brackets", nil)
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestFilterMatches(t *testing.T) {
	id := uuid.New()
	rec := Record{ID: id, Data: map[string]interface{}{"name": "Minotaur", "order": float64(2), "active": true}}

	assert.True(t, Filter(nil).Matches(rec))
	assert.True(t, Filter{"name": "Minotaur"}.Matches(rec))
	assert.True(t, Filter{"order": 2}.Matches(rec), "numbers compare across types")
	assert.True(t, Filter{IDField: id.String(), "active": true}.Matches(rec))
	assert.True(t, Filter{IDField: id}.Matches(rec))
	assert.False(t, Filter{IDField: uuid.New().String()}.Matches(rec))
	assert.False(t, Filter{"name": "Bite Force"}.Matches(rec))
	assert.False(t, Filter{"team": "Minotaur"}.Matches(rec), "missing fields never match")
}

func TestFilterID(t *testing.T) {
	id := uuid.New()

	got, pinned, err := Filter{IDField: id.String()}.id()
	require.NoError(t, err)
	assert.True(t, pinned)
	assert.Equal(t, id, got)

	_, pinned, err = Filter{"name": "x"}.id()
	require.NoError(t, err)
	assert.False(t, pinned)

	_, _, err = Filter{IDField: "not-a-uuid"}.id()
	assert.Error(t, err)

	assert.Equal(t, map[string]interface{}{"name": "x"}, Filter{IDField: id, "name": "x"}.data())
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := NewMemoryStore(clock)

	tomb, err := s.Insert(ctx, Participants, map[string]interface{}{"name": "Tombstone", "team": "Hardcore"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tomb.ID)
	assert.Equal(t, Participants, tomb.Collection)
	assert.Equal(t, clock.Now().UTC(), tomb.CreatedAt)

	_, err = s.Insert(ctx, Participants, map[string]interface{}{"name": "Bite Force", "team": "Hardcore"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, Participants, map[string]interface{}{"name": "Witch Doctor", "team": "Team Witch Doctor"})
	require.NoError(t, err)

	_, err = s.Insert(ctx, Participants, map[string]interface{}{"team": "nameless"})
	require.ErrorIs(t, err, ErrSchema)

	all, err := s.Find(ctx, Participants, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Tombstone", all[0].String("name"), "find keeps insertion order")

	hardcore, err := s.Find(ctx, Participants, Filter{"team": "Hardcore"})
	require.NoError(t, err)
	assert.Len(t, hardcore, 2)

	one, err := s.FindOne(ctx, Participants, Filter{IDField: tomb.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "Tombstone", one.String("name"))

	_, err = s.FindOne(ctx, Participants, Filter{"name": "Sawblaze"})
	require.ErrorIs(t, err, ErrNotFound)

	clock.Advance(time.Minute)
	updated, err := s.UpdateOne(ctx, Participants, Filter{IDField: tomb.ID}, map[string]interface{}{"weight_class": "heavyweight"})
	require.NoError(t, err)
	assert.Equal(t, "heavyweight", updated.String("weight_class"))
	assert.Equal(t, "Tombstone", updated.String("name"), "patch merges into existing data")
	assert.Equal(t, tomb.CreatedAt.Add(time.Minute), updated.UpdatedAt)

	_, err = s.UpdateOne(ctx, Participants, Filter{IDField: tomb.ID}, map[string]interface{}{"name": 7})
	require.ErrorIs(t, err, ErrSchema)

	_, err = s.UpdateOne(ctx, Participants, Filter{"name": "Sawblaze"}, map[string]interface{}{"team": "x"})
	require.ErrorIs(t, err, ErrNotFound)

	n, err := s.UpdateMany(ctx, Participants, Filter{"team": "Hardcore"}, map[string]interface{}{"active": true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	active, err := s.Find(ctx, Participants, Filter{"active": true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	n, err = s.Delete(ctx, Participants, Filter{"team": "Hardcore"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rest, err := s.Find(ctx, Participants, nil)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "Witch Doctor", rest[0].String("name"))
}

func TestMemoryStoreUpdateManyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(clockwork.NewFakeClock())

	_, err := s.Insert(ctx, Matches, map[string]interface{}{"red_id": "a", "blue_id": "b", "status": MatchScheduled})
	require.NoError(t, err)
	_, err = s.Insert(ctx, Matches, map[string]interface{}{"red_id": "c", "blue_id": "d", "status": MatchScheduled})
	require.NoError(t, err)

	_, err = s.UpdateMany(ctx, Matches, nil, map[string]interface{}{"status": "abandoned"})
	require.ErrorIs(t, err, ErrSchema)

	scheduled, err := s.Find(ctx, Matches, Filter{"status": MatchScheduled})
	require.NoError(t, err)
	assert.Len(t, scheduled, 2)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(clockwork.NewFakeClock())

	data := map[string]interface{}{"name": "Lock-Jaw"}
	rec, err := s.Insert(ctx, Participants, data)
	require.NoError(t, err)

	data["name"] = "changed"
	rec.Data["name"] = "changed too"

	stored, err := s.FindOne(ctx, Participants, Filter{IDField: rec.ID})
	require.NoError(t, err)
	assert.Equal(t, "Lock-Jaw", stored.String("name"))
}
