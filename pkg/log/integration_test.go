package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", "warning_code", "TEST_WARNING")
	testLogger.Error("error message", fmt.Errorf("test error"), "error_code", "TEST_ERROR")

	if buffer.Len() == 0 {
		t.Fatal("Expected log output, got empty string")
	}
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField(OperationKey, OperationFit) {
		t.Error("expected operation field")
	}
	if !testLogger.ContainsField("error", "test error") {
		t.Error("expected leading error to be logged under the error key")
	}
	if !testLogger.ContainsField("number", float64(42)) {
		t.Error("expected numeric field")
	}
}

func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	child := testLogger.With(ModelNameKey, "LightGBM", ReportIDKey, "r-1")
	child.Info("trial finished", TrialKey, 3)

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e[ModelNameKey] != "LightGBM" || e[ReportIDKey] != "r-1" || e[TrialKey] != float64(3) {
		t.Errorf("unexpected entry %v", e)
	}
}

func TestLoggerEnabled(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelWarn)
	ctx := context.Background()

	if testLogger.Enabled(ctx, LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !testLogger.Enabled(ctx, LevelError) {
		t.Error("error should be enabled at warn level")
	}
	testLogger.Info("hidden")
	if buffer.Len() != 0 {
		t.Error("info record should have been filtered")
	}
}

func TestLoggerProviderSetLevel(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelError)
	logger := provider.GetLoggerWithName("automl.tuner")
	logger.Info("dropped")
	provider.SetLevel(LevelDebug)
	logger.Info("kept")

	if strings.Contains(buffer.String(), "dropped") {
		t.Error("record logged before SetLevel should be filtered")
	}
	if !provider.Logger().ContainsField(ComponentKey, "automl.tuner") {
		t.Error("expected component field")
	}
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProviderWithWriter(&buf, LevelInfo)
	logger := provider.GetLoggerWithName("automl.runner").With(ReportIDKey, "abc")

	logger.Debug("not emitted")
	logger.Info("stage done", PhaseKey, "evaluate", CVMeanKey, 0.93)
	logger.Error("stage failed", errors.New("boom"), PhaseKey, "tune")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var info map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &info); err != nil {
		t.Fatal(err)
	}
	if info["message"] != "stage done" || info[ComponentKey] != "automl.runner" || info[ReportIDKey] != "abc" {
		t.Errorf("unexpected info record %v", info)
	}
	if info[CVMeanKey] != 0.93 {
		t.Errorf("cv mean = %v", info[CVMeanKey])
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["error"] != "boom" || rec["level"] != "error" {
		t.Errorf("unexpected error record %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	defer func() {
		if recover() == nil {
			t.Error("ToLogLevel should panic on invalid input")
		}
	}()
	ToLogLevel("verbose")
}

func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				testLogger.With(FoldKey, i).Info("fold scored", "j", j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 200 {
		t.Errorf("expected 200 entries, got %d", len(entries))
	}
}
