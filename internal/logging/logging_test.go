package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetup(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	if err := Setup("debug", "json"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.JSONFormatter); !ok {
		t.Fatalf("expected json formatter")
	}

	if err := Setup("loud", "text"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if err := Setup("info", "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	log.SetFormatter(&log.TextFormatter{})
}
