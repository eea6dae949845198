package features

import (
	"testing"
	"time"

	"github.com/courtside-labs/gamelog-backfill/internal/dataset"
)

func game(player dataset.Identifier, id, date string, pts, reb float64) dataset.Record {
	return dataset.Record{PlayerID: player, GameID: id, GameDate: date, PTS: pts, REB: reb}
}

func TestRollingAverages_ShiftedWindow(t *testing.T) {
	records := []dataset.Record{
		game("1", "g3", "OCT 28, 2023", 30, 6),
		game("1", "g1", "OCT 24, 2023", 10, 2),
		game("1", "g4", "OCT 30, 2023", 40, 8),
		game("1", "g2", "OCT 26, 2023", 20, 4),
	}

	rows, err := RollingAverages(records, 2)
	if err != nil {
		t.Fatalf("RollingAverages: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d; want 4", len(rows))
	}

	wantIDs := []string{"g1", "g2", "g3", "g4"}
	for i, row := range rows {
		if row.GameID != wantIDs[i] {
			t.Errorf("rows[%d].GameID = %s; want %s", i, row.GameID, wantIDs[i])
		}
	}
	if rows[0].Ready || rows[1].Ready {
		t.Error("rows without a full window must not be ready")
	}
	if !rows[2].Ready || rows[2].PTS != 15 || rows[2].REB != 3 {
		t.Errorf("rows[2] = %+v; want PTS 15 REB 3", rows[2])
	}
	if !rows[3].Ready || rows[3].PTS != 25 || rows[3].REB != 5 {
		t.Errorf("rows[3] = %+v; want PTS 25 REB 5", rows[3])
	}
	if rows[2].GameDate != "2023-10-28" {
		t.Errorf("GameDate = %s; want 2023-10-28", rows[2].GameDate)
	}
}

func TestRollingAverages_PlayersDoNotMix(t *testing.T) {
	records := []dataset.Record{
		game("2", "b1", "2023-10-24", 100, 0),
		game("1", "a1", "2023-10-24", 1, 0),
		game("2", "b2", "2023-10-25", 100, 0),
		game("1", "a2", "2023-10-25", 3, 0),
		game("1", "a3", "2023-10-26", 5, 0),
	}

	rows, err := RollingAverages(records, 1)
	if err != nil {
		t.Fatalf("RollingAverages: %v", err)
	}
	got := make(map[string]RollingRow)
	for _, r := range rows {
		got[r.GameID] = r
	}
	if got["a1"].Ready || got["b1"].Ready {
		t.Error("first game of each player must not be ready")
	}
	if got["a2"].PTS != 1 || got["a3"].PTS != 3 {
		t.Errorf("player 1 averages = %v, %v; want 1, 3", got["a2"].PTS, got["a3"].PTS)
	}
	if got["b2"].PTS != 100 {
		t.Errorf("player 2 average = %v; want 100", got["b2"].PTS)
	}
}

func TestRollingAverages_BadDate(t *testing.T) {
	_, err := RollingAverages([]dataset.Record{game("1", "g", "yesterday", 0, 0)}, 2)
	if err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestParseGameDate(t *testing.T) {
	want := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"Jan 05, 2024", "JAN 05, 2024", "2024-01-05", "2024-01-05T00:00:00"} {
		got, err := ParseGameDate(in)
		if err != nil {
			t.Errorf("ParseGameDate(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseGameDate(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestRollingAverages_ZeroAttemptPercentagesCount(t *testing.T) {
	// The second game had no three-point attempts; its FG3_PCT was null
	// upstream and decodes to 0.
	records := []dataset.Record{
		{PlayerID: "1", GameID: "g1", GameDate: "2023-10-24", FG3Pct: 0.5},
		{PlayerID: "1", GameID: "g2", GameDate: "2023-10-26", FG3Pct: 0},
		{PlayerID: "1", GameID: "g3", GameDate: "2023-10-28", FG3Pct: 0.4},
	}
	rows, err := RollingAverages(records, 2)
	if err != nil {
		t.Fatalf("RollingAverages: %v", err)
	}
	if !rows[2].Ready {
		t.Fatal("row after two games must be ready")
	}
	if rows[2].FG3Pct != 0.25 {
		t.Errorf("FG3Pct = %v; want 0.25", rows[2].FG3Pct)
	}
}
