package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/arena/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// CreateTableSQL creates the single table every collection lives in
const CreateTableSQL = `
CREATE TABLE IF NOT EXISTS records (
    id          UUID PRIMARY KEY,
    collection  TEXT        NOT NULL,
    data        JSONB       NOT NULL DEFAULT '{}'::jsonb,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS records_collection_idx ON records (collection, created_at);
CREATE INDEX IF NOT EXISTS records_data_idx ON records USING GIN (data jsonb_path_ops);
`

const recordColumns = `id, collection, data, created_at, updated_at`

const findRecords = `SELECT ` + recordColumns + `
FROM records
WHERE collection = $1 AND data @> $2 AND ($3::uuid IS NULL OR id = $3)
ORDER BY created_at, id`

const findRecordsForUpdate = findRecords + `
FOR UPDATE`

const insertRecord = `INSERT INTO records (id, collection, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING ` + recordColumns

const updateRecordData = `UPDATE records
SET data = $2, updated_at = $3
WHERE id = $1
RETURNING ` + recordColumns

const deleteRecords = `DELETE FROM records
WHERE collection = $1 AND data @> $2 AND ($3::uuid IS NULL OR id = $3)`

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries {
	return &queries{db: db}
}

func bindTx(tx *sql.Tx) *queries {
	return newQueries(tx)
}

// PostgresStore keeps records as JSONB rows in the records table
type PostgresStore struct {
	db      *sql.DB
	queries *queries
	now     func() time.Time
}

// Verify that PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open lib/pq database
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		queries: newQueries(db),
		now:     time.Now,
	}
}

// EnsureSchema creates the records table and indexes if they are missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, CreateTableSQL); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	if _, err := SchemaFor(collection); err != nil {
		return nil, err
	}
	return s.queries.find(ctx, findRecords, collection, filter)
}

func (s *PostgresStore) FindOne(ctx context.Context, collection string, filter Filter) (Record, error) {
	found, err := s.Find(ctx, collection, filter)
	if err != nil {
		return Record{}, err
	}
	if len(found) == 0 {
		return Record{}, fmt.Errorf("%s: %w", collection, ErrNotFound)
	}
	return found[0], nil
}

func (s *PostgresStore) Insert(ctx context.Context, collection string, data map[string]interface{}) (Record, error) {
	if err := validate(collection, data); err != nil {
		return Record{}, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Record{}, fmt.Errorf("marshal record data: %w", err)
	}
	row := s.queries.db.QueryRowContext(ctx, insertRecord, uuid.New(), collection, raw, s.now().UTC())
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("insert %s record: %w", collection, err)
	}
	return rec, nil
}

func (s *PostgresStore) UpdateOne(ctx context.Context, collection string, filter Filter, patch map[string]interface{}) (Record, error) {
	if _, err := SchemaFor(collection); err != nil {
		return Record{}, err
	}

	var updated Record
	err := sqlutil.Run(ctx, s.db, bindTx, func(q *queries) error {
		found, err := q.find(ctx, findRecordsForUpdate, collection, filter)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("%s: %w", collection, ErrNotFound)
		}
		updated, err = q.update(ctx, collection, found[0], patch, s.now().UTC())
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return updated, nil
}

// UpdateMany applies patch to every match inside one transaction
func (s *PostgresStore) UpdateMany(ctx context.Context, collection string, filter Filter, patch map[string]interface{}) (int, error) {
	if _, err := SchemaFor(collection); err != nil {
		return 0, err
	}

	count := 0
	err := sqlutil.Run(ctx, s.db, bindTx, func(q *queries) error {
		found, err := q.find(ctx, findRecordsForUpdate, collection, filter)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for _, rec := range found {
			if _, err := q.update(ctx, collection, rec, patch, now); err != nil {
				return fmt.Errorf("record %s: %w", rec.ID, err)
			}
		}
		count = len(found)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection string, filter Filter) (int, error) {
	if _, err := SchemaFor(collection); err != nil {
		return 0, err
	}
	contains, id, err := filterArgs(filter)
	if err != nil {
		return 0, err
	}
	res, err := s.queries.db.ExecContext(ctx, deleteRecords, collection, contains, id)
	if err != nil {
		return 0, fmt.Errorf("delete %s records: %w", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s records: %w", collection, err)
	}
	return int(n), nil
}

func (q *queries) find(ctx context.Context, query, collection string, filter Filter) ([]Record, error) {
	contains, id, err := filterArgs(filter)
	if err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, query, collection, contains, id)
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", collection, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s record: %w", collection, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s records: %w", collection, err)
	}
	return out, nil
}

func (q *queries) update(ctx context.Context, collection string, rec Record, patch map[string]interface{}, now time.Time) (Record, error) {
	data := merge(rec.Data, patch)
	if err := validate(collection, data); err != nil {
		return Record{}, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Record{}, fmt.Errorf("marshal record data: %w", err)
	}
	updated, err := scanRecord(q.db.QueryRowContext(ctx, updateRecordData, rec.ID, raw, now))
	if err != nil {
		return Record{}, fmt.Errorf("update %s record: %w", collection, err)
	}
	return updated, nil
}

// filterArgs splits a filter into a JSONB containment document and an optional id
func filterArgs(filter Filter) ([]byte, uuid.NullUUID, error) {
	id, pinned, err := filter.id()
	if err != nil {
		return nil, uuid.NullUUID{}, err
	}
	contains, err := json.Marshal(filter.data())
	if err != nil {
		return nil, uuid.NullUUID{}, fmt.Errorf("marshal filter: %w", err)
	}
	return contains, uuid.NullUUID{UUID: id, Valid: pinned}, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec  Record
		data pqtype.NullRawMessage
	)
	if err := row.Scan(&rec.ID, &rec.Collection, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}

	rec.Data = map[string]interface{}{}
	if data.Valid && len(data.RawMessage) > 0 {
		if err := json.Unmarshal(data.RawMessage, &rec.Data); err != nil {
			return Record{}, fmt.Errorf("decode record data: %w", err)
		}
	}
	return rec, nil
}
