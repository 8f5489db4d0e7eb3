package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/arena/go/internal/dbconfig"
	"github.com/mcdev12/arena/go/internal/records"
)

// Participant mirrors the JSON snapshot
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Team        string `json:"team"`
	WeightClass string `json:"weight_class"`
}

// data is the JSONB document stored for the participant
func (p Participant) data() map[string]interface{} {
	d := map[string]interface{}{"name": p.Name}
	if p.Team != "" {
		d["team"] = p.Team
	}
	if p.WeightClass != "" {
		d["weight_class"] = p.WeightClass
	}
	return d
}

// check validates the id and the document before it reaches the database
func (p Participant) check() (uuid.UUID, []byte, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid id %q: %w", p.ID, err)
	}
	d := p.data()
	if err := records.Schemas[records.Participants].Validate(d); err != nil {
		return uuid.Nil, nil, err
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, raw, nil
}

func main() {
	path := flag.String("file", "go/internal/assets/participants.json", "participants JSON snapshot")
	flag.Parse()

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var participants []Participant
	if err := json.Unmarshal(data, &participants); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, records.CreateTableSQL); err != nil {
		fmt.Fprintf(os.Stderr, "create records table: %v\n", err)
		os.Exit(1)
	}

	// 3) Upsert and count
	var (
		total    = len(participants)
		inserted int
		skipped  int
		errs     int
	)

	for _, p := range participants {
		id, doc, err := p.check()
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping participant %q: %v\n", p.Name, err)
			errs++
			continue
		}

		cmdTag, err := pool.Exec(ctx, `
            INSERT INTO records (id, collection, data)
            VALUES ($1, $2, $3::jsonb)
            ON CONFLICT (id) DO NOTHING
        `,
			id, records.Participants, string(doc),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting participant %s: %v\n", p.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Participants seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}
