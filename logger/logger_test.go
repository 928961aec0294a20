package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "default config",
			config: Config{Level: "info", OutputPaths: []string{"stdout"}},
		},
		{
			name:   "debug level",
			config: Config{Level: "debug", OutputPaths: []string{"stdout"}},
		},
		{
			name:   "invalid level falls back to info",
			config: Config{Level: "invalid", OutputPaths: []string{"stdout"}},
		},
		{
			name:   "empty output paths",
			config: Config{Level: "info", OutputPaths: []string{}},
		},
		{
			name:   "development encoder",
			config: Config{Level: "debug", Development: true},
		},
		{
			name:   "multiple output paths",
			config: Config{Level: "info", OutputPaths: []string{"stdout", "stderr"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger without error")
			}
		})
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()

	logger.DebugW("test debug", "key", "value")
	logger.InfoW("test message", "key", "value")
	logger.WarnW("test warning", "key", "value")
	logger.ErrorW("test error", "key", "value")
	logger.With("request_id", "abc").InfoW("child")

	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() should not error on nop logger: %v", err)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := NewNop()
	if OrNop(l) != Logger(l) {
		t.Fatal("OrNop should return the given logger")
	}
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &DefaultLogger{logger: zap.New(core).Sugar()}

	l.With("user_id", "42").InfoW("dream started", "prompt", "a cat")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["user_id"] != "42" {
		t.Errorf("user_id = %v, want 42", fields["user_id"])
	}
	if fields["prompt"] != "a cat" {
		t.Errorf("prompt = %v, want a cat", fields["prompt"])
	}
}
