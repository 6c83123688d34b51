package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected Level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected Format 'json', got '%s'", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected Output 'stderr', got '%s'", cfg.Output)
	}
	if cfg.Director != "" {
		t.Errorf("expected file output disabled, got Director '%s'", cfg.Director)
	}
}

func TestConfigTransportLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"unknown", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Config{Level: tt.level}
			if got := cfg.TransportLevel(); got != tt.expected {
				t.Errorf("TransportLevel() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{Level: "debug"}
	cfg.applyDefaults()

	if cfg.Level != "debug" {
		t.Errorf("applyDefaults overwrote Level: %s", cfg.Level)
	}
	if cfg.Format != "json" || cfg.Output != "stderr" || cfg.MaxSize != 100 {
		t.Errorf("applyDefaults did not fill defaults: %+v", cfg)
	}
}

func TestNewLoggerWritesLevelFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "none"
	cfg.Director = t.TempDir()

	logger := NewLogger(cfg)
	logger.Info("compressed", zap.Int("width", 800))
	logger.Error("decode failed")
	_ = logger.Sync()
	defer CloseAllWriters()

	date := time.Now().Format("2006-01-02")
	for _, level := range []string{"info", "error"} {
		b, err := os.ReadFile(filepath.Join(cfg.Director, date, level+".log"))
		if err != nil {
			t.Fatalf("expected %s log file: %v", level, err)
		}
		if len(b) == 0 {
			t.Errorf("%s log file is empty", level)
		}
	}

	info, _ := os.ReadFile(filepath.Join(cfg.Director, date, "info.log"))
	if strings.Contains(string(info), "decode failed") {
		t.Errorf("info file should only contain info entries, got: %s", info)
	}
}

func TestLoggerChildren(t *testing.T) {
	logger := Nop()

	if child := logger.With(zap.String("component", "test")); child == nil || child == logger {
		t.Error("With should return a new logger instance")
	}
	if logger.Named("processor") == nil {
		t.Error("Named returned nil")
	}
	if logger.WithError(os.ErrNotExist) == nil {
		t.Error("WithError returned nil")
	}
	if logger.Zap() == nil {
		t.Error("Zap returned nil")
	}
}

func TestContextFunctions(t *testing.T) {
	ctx := SetTraceID(context.Background(), "trace-1")
	ctx = SetRequestID(ctx, "req-1")

	if got := GetTraceID(ctx); got != "trace-1" {
		t.Errorf("GetTraceID() = %v, want trace-1", got)
	}
	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %v, want req-1", got)
	}
	if got := GetTraceID(context.TODO()); got != "" {
		t.Errorf("GetTraceID(empty) = %v, want empty string", got)
	}
}

func TestContextLoggerStorage(t *testing.T) {
	logger := Nop()
	ctx := ToContext(context.Background(), logger)

	if FromContext(ctx) != logger {
		t.Error("FromContext should return the stored logger")
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should fall back to the global logger")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(GetEncoder(DefaultConfig()), zapcore.AddSync(&buf), zapcore.InfoLevel)
	logger := FromZap(zap.New(core))

	ctx := SetTraceID(context.Background(), "abc")
	WithContext(logger, ctx).Info("hello")

	if !strings.Contains(buf.String(), `"trace_id":"abc"`) {
		t.Errorf("expected trace_id field, got: %s", buf.String())
	}
}

func TestSetGlobal(t *testing.T) {
	original := Global()
	defer SetGlobal(original)

	logger := Nop()
	SetGlobal(logger)
	if Global() != logger {
		t.Error("SetGlobal did not replace the global logger")
	}
	Info("ignored")
	Error("ignored")
}

func TestHTTPMiddlewareLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(GetEncoder(DefaultConfig()), zapcore.AddSync(&buf), zapcore.InfoLevel)
	logger := FromZap(zap.New(core))

	h := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			t.Error("request logger missing from context")
		}
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/images/crop", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":418`) {
		t.Errorf("expected status field, got: %s", out)
	}
	if !strings.Contains(out, `"response_bytes":15`) {
		t.Errorf("expected response_bytes field, got: %s", out)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}
