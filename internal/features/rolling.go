// Package features derives per-player model inputs from fetched game logs.
package features

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/courtside-labs/gamelog-backfill/internal/dataset"
)

// DefaultWindow is the number of prior games averaged for each row.
const DefaultWindow = 10

// Stat names one rolled column and how to read it from a record.
type Stat struct {
	Name  string
	Value func(dataset.Record) float64
}

// Stats lists the rolled statistics in output column order.
var Stats = []Stat{
	{"PTS", func(r dataset.Record) float64 { return r.PTS }},
	{"REB", func(r dataset.Record) float64 { return r.REB }},
	{"AST", func(r dataset.Record) float64 { return r.AST }},
	{"STL", func(r dataset.Record) float64 { return r.STL }},
	{"BLK", func(r dataset.Record) float64 { return r.BLK }},
	{"TOV", func(r dataset.Record) float64 { return r.TOV }},
	{"FG_PCT", func(r dataset.Record) float64 { return r.FGPct }},
	{"FG3_PCT", func(r dataset.Record) float64 { return r.FG3Pct }},
	{"FT_PCT", func(r dataset.Record) float64 { return r.FTPct }},
}

// RollingRow is one game with the player's averages over the games before it.
// The averages are only meaningful when Ready is true.
type RollingRow struct {
	PlayerID dataset.Identifier `csv:"Player_ID"`
	GameID   string             `csv:"Game_ID"`
	GameDate string             `csv:"GAME_DATE"`
	Matchup  string             `csv:"MATCHUP"`
	Ready    bool               `csv:"ready"`

	PTS    float64 `csv:"player_PTS_roll"`
	REB    float64 `csv:"player_REB_roll"`
	AST    float64 `csv:"player_AST_roll"`
	STL    float64 `csv:"player_STL_roll"`
	BLK    float64 `csv:"player_BLK_roll"`
	TOV    float64 `csv:"player_TOV_roll"`
	FGPct  float64 `csv:"player_FG_PCT_roll"`
	FG3Pct float64 `csv:"player_FG3_PCT_roll"`
	FTPct  float64 `csv:"player_FT_PCT_roll"`
}

func (r *RollingRow) set(avgs []float64) {
	r.PTS, r.REB, r.AST = avgs[0], avgs[1], avgs[2]
	r.STL, r.BLK, r.TOV = avgs[3], avgs[4], avgs[5]
	r.FGPct, r.FG3Pct, r.FTPct = avgs[6], avgs[7], avgs[8]
}

var dateLayouts = []string{
	"Jan 02, 2006",
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseGameDate parses a GAME_DATE value as returned by the stats API.
func ParseGameDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised game date %q", s)
}

type dated struct {
	rec  dataset.Record
	date time.Time
}

// RollingAverages returns one row per record, ordered by player then game
// date, carrying the mean of each stat over the player's previous window
// games. The current game never contributes to its own row. Records carry
// no nulls: a percentage the API left null (no attempts) arrives as 0 and
// is averaged as 0, so a row is Ready as soon as window games precede it.
func RollingAverages(records []dataset.Record, window int) ([]RollingRow, error) {
	if window < 1 {
		window = DefaultWindow
	}

	games := make([]dated, 0, len(records))
	for _, r := range records {
		t, err := ParseGameDate(r.GameDate)
		if err != nil {
			return nil, fmt.Errorf("player %s game %s: %w", r.PlayerID, r.GameID, err)
		}
		games = append(games, dated{rec: r, date: t})
	}
	sort.SliceStable(games, func(i, j int) bool {
		if games[i].rec.PlayerID != games[j].rec.PlayerID {
			return games[i].rec.PlayerID < games[j].rec.PlayerID
		}
		return games[i].date.Before(games[j].date)
	})

	rows := make([]RollingRow, 0, len(games))
	sums := make([]float64, len(Stats))
	avgs := make([]float64, len(Stats))
	start := 0 // first game of the current player

	for i, g := range games {
		if i == 0 || g.rec.PlayerID != games[i-1].rec.PlayerID {
			start = i
			for k := range sums {
				sums[k] = 0
			}
		}

		row := RollingRow{
			PlayerID: g.rec.PlayerID,
			GameID:   g.rec.GameID,
			GameDate: g.date.Format("2006-01-02"),
			Matchup:  g.rec.Matchup,
		}
		if i-start >= window {
			for k := range sums {
				avgs[k] = sums[k] / float64(window)
			}
			row.Ready = true
			row.set(avgs)
		}
		rows = append(rows, row)

		for k, s := range Stats {
			sums[k] += s.Value(g.rec)
			if i-start >= window {
				sums[k] -= s.Value(games[i-window].rec)
			}
		}
	}
	return rows, nil
}
