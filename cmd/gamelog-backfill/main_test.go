package main

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/courtside-labs/gamelog-backfill/internal/config"
)

func TestNewLogger(t *testing.T) {
	log := newLogger(config.LogConfig{Level: "debug", Format: "json"})
	if log.Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v; want debug", log.Logger.GetLevel())
	}
	if _, ok := log.Logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("formatter = %T; want JSON", log.Logger.Formatter)
	}

	log = newLogger(config.LogConfig{Level: "bogus"})
	if log.Logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v; want info fallback", log.Logger.GetLevel())
	}
	if log.Data["app"] != "gamelog-backfill" {
		t.Errorf("app field = %v", log.Data["app"])
	}
}
