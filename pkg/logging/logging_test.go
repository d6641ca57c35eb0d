package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/appenmapper/appenmapper/pkg/logging"
)

func TestContextLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)

	ctx := logging.WithLogger(context.Background(), &logger)
	ctx = logging.WithRunID(ctx, "run-42")
	logging.FromContext(ctx).Info().Int("rows", 3).Msg("mapped")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	if entry["run_id"] != "run-42" {
		t.Errorf("expected run_id run-42, got %v", entry["run_id"])
	}
	if entry["message"] != "mapped" {
		t.Errorf("expected message 'mapped', got %v", entry["message"])
	}
}

func TestFromContextDefault(t *testing.T) {
	if logging.FromContext(context.Background()) != logging.Default() {
		t.Error("expected default logger for a bare context")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	prev := *logging.Default()
	defer logging.SetDefault(prev)

	logging.Configure(logging.Config{Level: "warn", Format: "json", Output: path})
	logging.Default().Info().Msg("hidden")
	logging.Default().Warn().Msg("shown")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %s", out)
	}
}
