package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func restoreLogger(t *testing.T) {
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestSetup_InvalidLevel(t *testing.T) {
	restoreLogger(t)
	if _, err := Setup("verbose", "", false); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestSetup_SetsGlobalLevel(t *testing.T) {
	restoreLogger(t)
	closer, err := Setup("warn", "", false)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer closer.Close()

	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %s", zerolog.GlobalLevel())
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "logs", "api.log")

	closer, err := Setup("info", path, false)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	log.Info().Str("operator", "Airtel").Msg("prediction served")
	log.Debug().Msg("filtered out")
	if err := closer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !bytes.Contains(data, []byte(`"operator":"Airtel"`)) {
		t.Errorf("expected structured field in log, got %s", data)
	}
	if !bytes.Contains(data, []byte(`"service":"callquality"`)) {
		t.Errorf("expected service field in log, got %s", data)
	}
	if bytes.Contains(data, []byte("filtered out")) {
		t.Error("debug message should be filtered at info level")
	}
}
