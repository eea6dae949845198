package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/courtside-labs/gamelog-backfill/internal/config"
	"github.com/courtside-labs/gamelog-backfill/internal/metrics"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Redis.URL = "redis://:hunter2@localhost:6379/0"

	l := logrus.New()
	l.SetOutput(io.Discard)

	m := metrics.New()
	m.SetIdentifiers(42)

	s := NewServer(cfg, m.Registry(), logrus.NewEntry(l))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	if code, _ := get(t, ts.URL+"/health"); code != http.StatusOK {
		t.Errorf("status = %d; want 200", code)
	}
}

func TestReady(t *testing.T) {
	s, ts := newTestServer(t)
	if code, _ := get(t, ts.URL+"/ready"); code != http.StatusServiceUnavailable {
		t.Errorf("status before ready = %d; want 503", code)
	}
	s.SetReady(true)
	if code, _ := get(t, ts.URL+"/ready"); code != http.StatusOK {
		t.Errorf("status after ready = %d; want 200", code)
	}
}

func TestMetrics(t *testing.T) {
	_, ts := newTestServer(t)
	code, body := get(t, ts.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(body, "glb_identifiers_total 42") {
		t.Error("run metrics missing from /metrics")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("go collector missing from /metrics")
	}
}

func TestConfigIsRedacted(t *testing.T) {
	_, ts := newTestServer(t)
	code, body := get(t, ts.URL+"/config")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if strings.Contains(body, "hunter2") {
		t.Error("redis password leaked through /config")
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.StatsAPI.Season != "2023-24" {
		t.Errorf("season = %s", cfg.StatsAPI.Season)
	}
}
