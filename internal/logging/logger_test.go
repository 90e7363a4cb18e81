package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fluxrender/internal/config"
	"fluxrender/internal/logging"
	"fluxrender/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (func(), string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Format:           format,
		Level:            level,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	emit := func() {
		component := logging.NewComponentLogger(logger, "render")
		component.Info("segment primed",
			logging.String(logging.FieldJobID, "0123456789abcdef"),
			logging.String(logging.FieldStage, "priming"),
			logging.Int(logging.FieldSegmentIndex, 1),
			logging.Float64("start", 2.5),
		)
	}
	return emit, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content := readLog(t, cfg.LogPath())
	if !strings.Contains(content, "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleHeaderPromotesSubjectFields(t *testing.T) {
	emit, path := newFileLogger(t, "console", "info")
	emit()

	content := readLog(t, path)
	if !strings.Contains(content, "INFO [render] Job 01234567 (priming) · Segment 1 – segment primed") {
		t.Fatalf("unexpected header: %q", content)
	}
	if !strings.Contains(content, "    - start: 2.5") {
		t.Fatalf("expected indented field, got %q", content)
	}
	if strings.Contains(content, "job_id:") {
		t.Fatalf("subject fields should not repeat at info level: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleDebugKeepsAllFields(t *testing.T) {
	emit, path := newFileLogger(t, "console", "debug")
	emit()

	content := readLog(t, path)
	if !strings.Contains(content, "job_id: 0123456789abcdef") {
		t.Fatalf("expected full job id at debug level, got %q", content)
	}
	if !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information at debug level, got %q", content)
	}
}

func TestJSONFormatUsesRenamedKeys(t *testing.T) {
	emit, path := newFileLogger(t, "json", "info")
	emit()

	line := strings.TrimSpace(readLog(t, path))
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, line)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
	if record[logging.FieldComponent] != "render" {
		t.Fatalf("expected component field, got %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithStage(ctx, "capturing")
	ctx = services.WithRequestID(ctx, "req-9")

	logging.WithContext(ctx, logger).Info("tick")

	content := readLog(t, logPath)
	for _, want := range []string{`"job_id":"job-1"`, `"stage":"capturing"`, `"correlation_id":"req-9"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %s in %q", want, content)
		}
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "audio mux failed", "audio_mux_failed",
		logging.String(logging.FieldImpact, "artifact has no audio"))

	content := readLog(t, logPath)
	for _, want := range []string{`"event_type":"audio_mux_failed"`, `"error_hint":"check logs for details"`, `"impact":"artifact has no audio"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %s in %q", want, content)
		}
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 8) {
		t.Fatal("nop logger should not be enabled")
	}
	logging.WarnWithContext(nil, "ignored", "noop")
}
