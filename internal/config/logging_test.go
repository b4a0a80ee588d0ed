package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerTagsRecordsWithSessionAttrs(t *testing.T) {
	var stderr, file bytes.Buffer
	log := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	log.Info("hello")

	if !strings.Contains(stderr.String(), "app="+appName) {
		t.Errorf("stderr output missing app attr: %s", stderr.String())
	}

	var record map[string]any
	if err := json.Unmarshal(file.Bytes(), &record); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if record["app"] != appName {
		t.Errorf("file record app = %v, want %s", record["app"], appName)
	}
	if _, ok := record["pid"]; !ok {
		t.Error("file record missing pid")
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var stderr, file bytes.Buffer
	log := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	log.Debug("noise")

	if stderr.Len() != 0 || file.Len() != 0 {
		t.Errorf("debug record passed an info-level logger: %q / %q", stderr.String(), file.String())
	}
}
