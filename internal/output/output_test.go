package output

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"github.com/courtside-labs/gamelog-backfill/internal/dataset"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "logs.csv")
	rows := []dataset.Record{
		{PlayerID: "2544", GameID: "0022300001", GameDate: "OCT 24, 2023", PTS: 21},
		{PlayerID: "2544", GameID: "0022300015", GameDate: "OCT 26, 2023", PTS: 18},
	}
	if err := WriteCSV(path, rows); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got []dataset.Record
	if err := gocsv.UnmarshalBytes(data, &got); err != nil {
		t.Fatalf("UnmarshalBytes: %v", err)
	}
	if len(got) != 2 || got[1] != rows[1] {
		t.Errorf("got = %+v; want %+v", got, rows)
	}
}

func TestWriteCSV_EmptyWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := WriteCSV(path, []dataset.Record{}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), "SEASON_ID,Player_ID") {
		t.Errorf("header = %q", string(data))
	}
}

type fakeObjectStore struct {
	buckets map[string]bool
	objects map[string][]byte
	putErr  error
}

func (f *fakeObjectStore) EnsureBucket(_ context.Context, bucket string) error {
	if f.buckets == nil {
		f.buckets = make(map[string]bool)
	}
	f.buckets[bucket] = true
	return nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, bucket, key string, data []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[bucket+"/"+key] = data
	return nil
}

func TestUploader(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	store := &fakeObjectStore{}
	u := NewUploader(store, "backfills", "2023-24", testLogger())
	if err := u.Upload(context.Background(), a, b); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !store.buckets["backfills"] {
		t.Error("bucket not ensured")
	}
	if got := string(store.objects["backfills/2023-24/b.csv"]); got != "b.csv" {
		t.Errorf("object b = %q", got)
	}
	if len(store.objects) != 2 {
		t.Errorf("objects = %d; want 2", len(store.objects))
	}
}

func TestUploader_Errors(t *testing.T) {
	boom := errors.New("access denied")
	u := NewUploader(&fakeObjectStore{putErr: boom}, "b", "", testLogger())

	f := filepath.Join(t.TempDir(), "x.csv")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := u.Upload(context.Background(), f); !errors.Is(err, boom) {
		t.Errorf("err = %v; want %v", err, boom)
	}
	if err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewS3Client_Validation(t *testing.T) {
	if _, err := NewS3Client(S3Options{}); err == nil {
		t.Error("expected error without endpoint")
	}
	if _, err := NewS3Client(S3Options{Endpoint: "localhost:9000"}); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewS3Client(S3Options{Endpoint: "https://s3.example.com", AccessKeyID: "k", SecretAccessKey: "s"}); err != nil {
		t.Errorf("NewS3Client: %v", err)
	}
}
