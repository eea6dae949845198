// Package dataset holds the records accumulated by a backfill run together
// with the set of identifiers that have already been attempted.
package dataset

import (
	"errors"
	"fmt"
	"sort"
)

// ErrOrphanRecord is returned by Verify when a record belongs to an
// identifier that is not in the processed set.
var ErrOrphanRecord = errors.New("record for unprocessed identifier")

// ErrForeignRecord is returned by Append when a record names a different
// identifier than the one it is appended under.
var ErrForeignRecord = errors.New("record belongs to another identifier")

// Identifier names one entity whose history is fetched (a player ID).
type Identifier string

// Record is one game-log line for one player. Field names follow the
// columns of the player game log result set.
type Record struct {
	SeasonID  string     `csv:"SEASON_ID"  json:"season_id"`
	PlayerID  Identifier `csv:"Player_ID"  json:"player_id"`
	GameID    string     `csv:"Game_ID"    json:"game_id"`
	GameDate  string     `csv:"GAME_DATE"  json:"game_date"`
	Matchup   string     `csv:"MATCHUP"    json:"matchup"`
	WL        string     `csv:"WL"         json:"wl"`
	Min       float64    `csv:"MIN"        json:"min"`
	FGM       float64    `csv:"FGM"        json:"fgm"`
	FGA       float64    `csv:"FGA"        json:"fga"`
	FGPct     float64    `csv:"FG_PCT"     json:"fg_pct"`
	FG3M      float64    `csv:"FG3M"       json:"fg3m"`
	FG3A      float64    `csv:"FG3A"       json:"fg3a"`
	FG3Pct    float64    `csv:"FG3_PCT"    json:"fg3_pct"`
	FTM       float64    `csv:"FTM"        json:"ftm"`
	FTA       float64    `csv:"FTA"        json:"fta"`
	FTPct     float64    `csv:"FT_PCT"     json:"ft_pct"`
	OREB      float64    `csv:"OREB"       json:"oreb"`
	DREB      float64    `csv:"DREB"       json:"dreb"`
	REB       float64    `csv:"REB"        json:"reb"`
	AST       float64    `csv:"AST"        json:"ast"`
	STL       float64    `csv:"STL"        json:"stl"`
	BLK       float64    `csv:"BLK"        json:"blk"`
	TOV       float64    `csv:"TOV"        json:"tov"`
	PF        float64    `csv:"PF"         json:"pf"`
	PTS       float64    `csv:"PTS"        json:"pts"`
	PlusMinus float64    `csv:"PLUS_MINUS" json:"plus_minus"`
}

// Dataset is the accumulator threaded through a backfill run. Records are
// append-only and kept in fetch order.
type Dataset struct {
	records   []Record
	processed map[Identifier]struct{}
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{
		processed: make(map[Identifier]struct{}),
	}
}

// FromSnapshot rebuilds a dataset from previously persisted records and
// processed identifiers. The inputs are copied.
func FromSnapshot(records []Record, processed []Identifier) *Dataset {
	d := &Dataset{
		records:   make([]Record, len(records)),
		processed: make(map[Identifier]struct{}, len(processed)),
	}
	copy(d.records, records)
	for _, id := range processed {
		d.processed[id] = struct{}{}
	}
	return d
}

// Append adds every record fetched for id. Records with an empty PlayerID
// are stamped with id. Either all records are appended or none are.
func (d *Dataset) Append(id Identifier, records []Record) error {
	for i := range records {
		if records[i].PlayerID != "" && records[i].PlayerID != id {
			return fmt.Errorf("%w: %s under %s", ErrForeignRecord, records[i].PlayerID, id)
		}
	}
	for _, r := range records {
		r.PlayerID = id
		d.records = append(d.records, r)
	}
	return nil
}

// MarkProcessed adds id to the processed set.
func (d *Dataset) MarkProcessed(id Identifier) {
	d.processed[id] = struct{}{}
}

// IsProcessed reports whether id has already been attempted.
func (d *Dataset) IsProcessed(id Identifier) bool {
	_, ok := d.processed[id]
	return ok
}

// Records returns a copy of the accumulated records in append order.
func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// Processed returns the processed identifiers in sorted order.
func (d *Dataset) Processed() []Identifier {
	out := make([]Identifier, 0, len(d.processed))
	for id := range d.processed {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of accumulated records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// ProcessedCount returns the size of the processed set.
func (d *Dataset) ProcessedCount() int {
	return len(d.processed)
}

// Verify checks that every record belongs to a processed identifier.
func (d *Dataset) Verify() error {
	for _, r := range d.records {
		if _, ok := d.processed[r.PlayerID]; !ok {
			return fmt.Errorf("%w: %s", ErrOrphanRecord, r.PlayerID)
		}
	}
	return nil
}
