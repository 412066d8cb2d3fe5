package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		enabled zapcore.Level
		wantErr bool
	}{
		{name: "production default", opts: Options{}, enabled: zapcore.InfoLevel},
		{name: "development default", opts: Options{Development: true}, enabled: zapcore.DebugLevel},
		{name: "explicit warn", opts: Options{Level: "warn", Service: "psychodetective"}, enabled: zapcore.WarnLevel},
		{name: "invalid level", opts: Options{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", "")

			l, err := New(tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !l.Core().Enabled(tt.enabled) {
				t.Errorf("level %s should be enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && l.Core().Enabled(tt.enabled-1) {
				t.Errorf("level %s should be disabled", tt.enabled-1)
			}
		})
	}
}

func TestNew_EnvLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	l, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be disabled when LOG_LEVEL=error")
	}
}
