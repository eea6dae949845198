package statsapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/courtside-labs/gamelog-backfill/internal/dataset"
)

// ListPlayers returns the IDs of every player in the league directory for
// the configured season, in listing order and without duplicates.
func (c *Client) ListPlayers(ctx context.Context) ([]dataset.Identifier, error) {
	onlyCurrent := "0"
	if c.onlyCurrentSeason {
		onlyCurrent = "1"
	}
	params := url.Values{
		"LeagueID":            {c.leagueID},
		"Season":              {c.season},
		"IsOnlyCurrentSeason": {onlyCurrent},
	}

	rs, err := c.getResultSet(ctx, "commonallplayers", params, "CommonAllPlayers")
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}

	t := newTable(rs)
	if _, ok := t.index["PERSON_ID"]; !ok {
		return nil, fmt.Errorf("listing players: PERSON_ID column missing")
	}

	seen := make(map[dataset.Identifier]struct{}, len(rs.RowSet))
	ids := make([]dataset.Identifier, 0, len(rs.RowSet))
	for _, row := range rs.RowSet {
		id := dataset.Identifier(t.str(row, "PERSON_ID"))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// PlayerGameLog returns every game the player logged in the configured
// season. A player without games yields an empty slice and no error.
func (c *Client) PlayerGameLog(ctx context.Context, id dataset.Identifier) ([]dataset.Record, error) {
	params := url.Values{
		"PlayerID":   {string(id)},
		"Season":     {c.season},
		"SeasonType": {c.seasonType},
		"LeagueID":   {c.leagueID},
	}

	rs, err := c.getResultSet(ctx, "playergamelog", params, "PlayerGameLog")
	if err != nil {
		return nil, fmt.Errorf("player %s game log: %w", id, err)
	}

	t := newTable(rs)
	records := make([]dataset.Record, 0, len(rs.RowSet))
	for _, row := range rs.RowSet {
		records = append(records, dataset.Record{
			SeasonID:  t.str(row, "SEASON_ID"),
			PlayerID:  id,
			GameID:    t.str(row, "Game_ID"),
			GameDate:  t.str(row, "GAME_DATE"),
			Matchup:   t.str(row, "MATCHUP"),
			WL:        t.str(row, "WL"),
			Min:       t.minutes(row, "MIN"),
			FGM:       t.num(row, "FGM"),
			FGA:       t.num(row, "FGA"),
			FGPct:     t.num(row, "FG_PCT"),
			FG3M:      t.num(row, "FG3M"),
			FG3A:      t.num(row, "FG3A"),
			FG3Pct:    t.num(row, "FG3_PCT"),
			FTM:       t.num(row, "FTM"),
			FTA:       t.num(row, "FTA"),
			FTPct:     t.num(row, "FT_PCT"),
			OREB:      t.num(row, "OREB"),
			DREB:      t.num(row, "DREB"),
			REB:       t.num(row, "REB"),
			AST:       t.num(row, "AST"),
			STL:       t.num(row, "STL"),
			BLK:       t.num(row, "BLK"),
			TOV:       t.num(row, "TOV"),
			PF:        t.num(row, "PF"),
			PTS:       t.num(row, "PTS"),
			PlusMinus: t.num(row, "PLUS_MINUS"),
		})
	}
	return records, nil
}

// table resolves cells by header name. Header lookup is case-insensitive
// because the API mixes Player_ID and PLAYER_ID across endpoints.
type table struct {
	index map[string]int
}

func newTable(rs *resultSet) table {
	idx := make(map[string]int, len(rs.Headers))
	for i, h := range rs.Headers {
		idx[strings.ToUpper(h)] = i
	}
	return table{index: idx}
}

func (t table) cell(row []interface{}, name string) interface{} {
	i, ok := t.index[strings.ToUpper(name)]
	if !ok || i >= len(row) {
		return nil
	}
	return row[i]
}

func (t table) str(row []interface{}, name string) string {
	switch v := t.cell(row, name).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// num treats null and unparsable cells as zero. The API sends a null
// percentage when the player made no attempts; it is written as 0.
func (t table) num(row []interface{}, name string) float64 {
	switch v := t.cell(row, name).(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// minutes accepts plain numbers as well as "MM:SS".
func (t table) minutes(row []interface{}, name string) float64 {
	s, ok := t.cell(row, name).(string)
	if !ok {
		return t.num(row, name)
	}
	mm, ss, found := strings.Cut(s, ":")
	if !found {
		return t.num(row, name)
	}
	m, err := strconv.ParseFloat(mm, 64)
	if err != nil {
		return 0
	}
	sec, err := strconv.ParseFloat(ss, 64)
	if err != nil {
		return m
	}
	return m + sec/60
}
