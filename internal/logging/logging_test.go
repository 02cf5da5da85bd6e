package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"newspaper/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "", want: slog.LevelInfo},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: " warn ", want: slog.LevelWarn},
		{input: "warning", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewWritesJSONAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer

	log, closer, err := logging.New(&buf, logging.Options{Level: "warn"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closer.Close()

	log.Info("Digest is sent")
	log.Warn("Failed to send digest", "userID", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var record map[string]any
	if err = json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["msg"] != "Failed to send digest" || record["userID"] != float64(7) {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestNewWritesFileCopy(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "newspaper.log")

	log, closer, err := logging.New(&buf, logging.Options{File: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	log.Info("Scheduler is started")

	if err = closer.Close(); err != nil {
		t.Fatalf("close logger: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "Scheduler is started") {
		t.Fatalf("log file does not contain record: %q", data)
	}
	if !strings.Contains(buf.String(), "Scheduler is started") {
		t.Fatalf("stdout does not contain record: %q", buf.String())
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, _, err := logging.New(&bytes.Buffer{}, logging.Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
