package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "INFO", "warn", "error"} {
		if _, err := New(level); err != nil {
			t.Errorf("New(%q) error = %v", level, err)
		}
	}
	if _, err := New("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop().With("run_id", "abc")
	l.Info("grading", "tests", 3)
	l.Debug("ignored")
	l.Sync()
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"warn", []string{"warn", "error"}},
		{"info", []string{"info", "warn", "error"}},
		// Lower than the base level: nothing new is enabled.
		{"debug", []string{"info", "warn", "error"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			l, err := FromZap(zap.New(core)).AtLeast(tt.level)
			if err != nil {
				t.Fatal(err)
			}
			l.Debug("debug")
			l.Info("info")
			l.Warn("warn")
			l.Error("error")

			var got []string
			for _, e := range logs.All() {
				got = append(got, e.Message)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("logged %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}

	if _, err := Nop().AtLeast("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
