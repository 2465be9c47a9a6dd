package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerParsesLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("DEBUG")
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	if _, err := NewLogger("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}

	defaulted, err := NewLogger("")
	if err != nil || defaulted.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level by default, got %v, %v", defaulted, err)
	}
}

func TestNewLoggerWritesJSON(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("info")
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.WithField("slug", "tech-1").Info("post created")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["slug"] != "tech-1" || entry["msg"] != "post created" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestInitSentryWithoutDSN(t *testing.T) {
	t.Parallel()

	hub, flush, err := InitSentry(logrus.New(), SentrySettings{})
	if err != nil {
		t.Fatalf("InitSentry returned error: %v", err)
	}
	if hub != nil {
		t.Fatalf("expected nil hub without DSN")
	}
	flush()
}

func TestGormLoggerFollowsLevel(t *testing.T) {
	t.Parallel()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	if GormLogger(logger) == nil {
		t.Fatalf("expected gorm logger")
	}
}
