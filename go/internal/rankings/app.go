package rankings

import (
	"context"
	"fmt"

	"github.com/mcdev12/arena/go/internal/records"
	"github.com/rs/zerolog/log"
)

// App loads standings inputs from the record store
type App struct {
	store records.Store
}

// NewApp creates a rankings app backed by store
func NewApp(store records.Store) *App {
	return &App{store: store}
}

// Standings computes rankings over every participant. A non-empty eventID
// restricts the matches to that event.
func (a *App) Standings(ctx context.Context, eventID string) ([]Ranking, error) {
	participantRecs, err := a.store.Find(ctx, records.Participants, nil)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	filter := records.Filter{"status": records.MatchCompleted}
	if eventID != "" {
		filter["event_id"] = eventID
	}
	matchRecs, err := a.store.Find(ctx, records.Matches, filter)
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}

	participants := make([]Participant, 0, len(participantRecs))
	for _, rec := range participantRecs {
		participants = append(participants, Participant{ID: rec.ID.String(), Name: rec.String("name")})
	}

	matches := make([]MatchResult, 0, len(matchRecs))
	for _, rec := range matchRecs {
		matches = append(matches, matchFromRecord(rec))
	}

	standings := ComputeRankings(matches, participants)
	log.Debug().
		Str("event_id", eventID).
		Int("participants", len(participants)).
		Int("matches", len(matches)).
		Msg("computed standings")
	return standings, nil
}

func matchFromRecord(rec records.Record) MatchResult {
	m := MatchResult{
		ID:        rec.ID.String(),
		RedID:     rec.String("red_id"),
		BlueID:    rec.String("blue_id"),
		Completed: rec.String("status") == records.MatchCompleted,
		WinnerID:  rec.String("winner_id"),
		KO:        rec.String("method") == records.MethodKO,
	}
	if rec.String("method") == records.MethodDraw {
		m.WinnerID = ""
	}
	return m
}
