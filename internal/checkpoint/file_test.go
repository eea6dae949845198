package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/courtside-labs/gamelog-backfill/internal/dataset"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Records: []dataset.Record{
			{SeasonID: "22023", PlayerID: "2544", GameID: "0022300001", GameDate: "OCT 24, 2023", Matchup: "LAL @ DEN", WL: "L", Min: 29, PTS: 21, REB: 8, AST: 5, FGPct: 0.5},
			{SeasonID: "22023", PlayerID: "2544", GameID: "0022300061", GameDate: "OCT 26, 2023", Matchup: "LAL vs. PHX", WL: "W", Min: 35, PTS: 21, REB: 8, AST: 5, PlusMinus: -3},
		},
		Processed: []dataset.Identifier{"2544", "76001"},
		SavedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newFileStore(t *testing.T) (*FileStore, string, string) {
	t.Helper()
	dir := t.TempDir()
	recordsPath := filepath.Join(dir, "player_stats_checkpoint.csv")
	processedPath := filepath.Join(dir, "processed_players_checkpoint.json")
	return NewFileStore(recordsPath, processedPath), recordsPath, processedPath
}

func TestFileStore_LoadMissing(t *testing.T) {
	fs, _, _ := newFileStore(t)
	s, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != nil {
		t.Errorf("Load = %+v; want nil", s)
	}
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	fs, recordsPath, _ := newFileStore(t)
	ctx := context.Background()
	want := sampleSnapshot()

	if err := fs.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Records, want.Records) {
		t.Errorf("Records = %+v; want %+v", got.Records, want.Records)
	}
	if !reflect.DeepEqual(got.Processed, want.Processed) {
		t.Errorf("Processed = %v; want %v", got.Processed, want.Processed)
	}
	if !got.SavedAt.Equal(want.SavedAt) {
		t.Errorf("SavedAt = %v; want %v", got.SavedAt, want.SavedAt)
	}

	entries, err := os.ReadDir(filepath.Dir(recordsPath))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("directory has %d entries; want 2 (temp files left behind?)", len(entries))
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	fs, _, _ := newFileStore(t)
	ctx := context.Background()

	if err := fs.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	empty := &Snapshot{Processed: []dataset.Identifier{"1"}}
	if err := fs.Save(ctx, empty); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Records) != 0 {
		t.Errorf("len(Records) = %d; want 0", len(got.Records))
	}
	if len(got.Processed) != 1 || got.Processed[0] != "1" {
		t.Errorf("Processed = %v; want [1]", got.Processed)
	}
}

func TestFileStore_PartialCheckpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("records only", func(t *testing.T) {
		fs, recordsPath, _ := newFileStore(t)
		if err := os.WriteFile(recordsPath, []byte("SEASON_ID\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := fs.Load(ctx); !errors.Is(err, ErrPartialCheckpoint) {
			t.Errorf("err = %v; want ErrPartialCheckpoint", err)
		}
	})

	t.Run("processed only", func(t *testing.T) {
		fs, _, processedPath := newFileStore(t)
		if err := os.WriteFile(processedPath, []byte(`{"processed":[]}`), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := fs.Load(ctx); !errors.Is(err, ErrPartialCheckpoint) {
			t.Errorf("err = %v; want ErrPartialCheckpoint", err)
		}
	})
}

func TestFileStore_CorruptProcessed(t *testing.T) {
	fs, recordsPath, processedPath := newFileStore(t)
	if err := os.WriteFile(recordsPath, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(processedPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFileStore_ReconcilesOrphanRecords(t *testing.T) {
	fs, _, _ := newFileStore(t)
	ctx := context.Background()

	s := sampleSnapshot()
	s.Records = append(s.Records, dataset.Record{PlayerID: "999", GameID: "x"})
	if err := fs.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Records) != 2 {
		t.Errorf("len(Records) = %d; want 2", len(got.Records))
	}
	if got.Dropped != 1 {
		t.Errorf("Dropped = %d; want 1", got.Dropped)
	}
	if err := got.Dataset().Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestFileStore_ClearIdempotent(t *testing.T) {
	fs, recordsPath, processedPath := newFileStore(t)
	ctx := context.Background()

	if err := fs.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := fs.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := fs.Clear(ctx); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	for _, p := range []string{recordsPath, processedPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists (err=%v)", p, err)
		}
	}
}

func TestDecodeRecords_Empty(t *testing.T) {
	header, err := EncodeRecords(nil)
	if err != nil {
		t.Fatalf("EncodeRecords: %v", err)
	}
	for name, in := range map[string][]byte{"empty": nil, "header only": header} {
		got, err := DecodeRecords(in)
		if err != nil {
			t.Errorf("%s: DecodeRecords: %v", name, err)
		}
		if len(got) != 0 {
			t.Errorf("%s: len = %d; want 0", name, len(got))
		}
	}
}
