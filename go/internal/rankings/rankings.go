package rankings

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// Points awarded per result
const (
	PointsWin     = 3
	PointsDraw    = 1
	PointsLoss    = 0
	PointsKOBonus = 1
)

// Participant is a robot entered in the competition
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MatchResult is the outcome of one fight between two participants
type MatchResult struct {
	ID        string `json:"id"`
	RedID     string `json:"red_id"`
	BlueID    string `json:"blue_id"`
	Completed bool   `json:"completed"`
	WinnerID  string `json:"winner_id"` // Empty for a draw
	KO        bool   `json:"ko"`
}

// Ranking is one row of the qualifying standings
type Ranking struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Played        int    `json:"played"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Draws         int    `json:"draws"`
	KOs           int    `json:"kos"`
	Points        int    `json:"points"`
}

// ComputeRankings scores completed matches and orders the participants.
// Every participant appears once, including those without a completed match.
// Matches naming unknown participants only count for the known side. A
// completed match whose winner is neither side is logged and not scored.
func ComputeRankings(matches []MatchResult, participants []Participant) []Ranking {
	rows := make([]*Ranking, 0, len(participants))
	byID := make(map[string]*Ranking, len(participants))
	for _, p := range participants {
		if _, dup := byID[p.ID]; dup {
			continue
		}
		row := &Ranking{ParticipantID: p.ID, Name: p.Name}
		rows = append(rows, row)
		byID[p.ID] = row
	}

	for _, m := range matches {
		if !m.Completed || m.RedID == m.BlueID {
			continue
		}
		red, blue := byID[m.RedID], byID[m.BlueID]

		switch m.WinnerID {
		case "":
			draw(red)
			draw(blue)
		case m.RedID:
			win(red, m.KO)
			loss(blue)
		case m.BlueID:
			win(blue, m.KO)
			loss(red)
		default:
			log.Warn().
				Str("match_id", m.ID).
				Str("winner_id", m.WinnerID).
				Str("red_id", m.RedID).
				Str("blue_id", m.BlueID).
				Msg("completed match names a winner from neither side, skipping")
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return less(rows[i], rows[j])
	})

	out := make([]Ranking, len(rows))
	for i, row := range rows {
		if i > 0 && tied(rows[i-1], row) {
			row.Rank = out[i-1].Rank
		} else {
			row.Rank = i + 1
		}
		out[i] = *row
	}
	return out
}

func win(r *Ranking, ko bool) {
	if r == nil {
		return
	}
	r.Played++
	r.Wins++
	r.Points += PointsWin
	if ko {
		r.KOs++
		r.Points += PointsKOBonus
	}
}

func loss(r *Ranking) {
	if r == nil {
		return
	}
	r.Played++
	r.Losses++
	r.Points += PointsLoss
}

func draw(r *Ranking) {
	if r == nil {
		return
	}
	r.Played++
	r.Draws++
	r.Points += PointsDraw
}

// less orders by points, wins, KOs (all descending), then losses ascending, then name
func less(a, b *Ranking) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	if a.KOs != b.KOs {
		return a.KOs > b.KOs
	}
	if a.Losses != b.Losses {
		return a.Losses < b.Losses
	}
	return a.Name < b.Name
}

// tied reports rows that only differ by name
func tied(a, b *Ranking) bool {
	return a.Points == b.Points && a.Wins == b.Wins && a.KOs == b.KOs && a.Losses == b.Losses
}
