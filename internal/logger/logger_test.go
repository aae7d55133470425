package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/logger"
)

func TestNew_LevelFallback(t *testing.T) {
	t.Parallel()

	log, err := logger.New(logger.Options{Level: "chatty", Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level=%s want info", log.GetLevel())
	}
}

func TestNew_JSONWithFileAndRedaction(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "dealprep.log")
	log, err := logger.New(logger.Options{Level: "debug", Format: "json", File: path, Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entry := logger.ForRun(log, "run_35620fa6b991a072").WithField("stage", "delivery")
	logger.Err(entry, errors.New("motion rejected x-api-key: mot_123")).Warn("delivery failed")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["run_id"] != "run_35620fa6b991a072" || rec["stage"] != "delivery" {
		t.Fatalf("missing fields: %v", rec)
	}
	if strings.Contains(rec["error"].(string), "mot_123") {
		t.Fatalf("secret leaked: %v", rec["error"])
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Equal(b, buf.Bytes()) {
		t.Fatalf("file and stdout differ:\n%s\n%s", b, buf.Bytes())
	}
}
