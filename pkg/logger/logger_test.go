package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	log, err := New("debug")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !log.Core().Enabled(zap.DebugLevel) {
		t.Error("debug level not enabled")
	}

	if _, err := New("loud"); err == nil {
		t.Error("invalid level accepted")
	}

	if Named(nil, "x") == nil {
		t.Error("Named(nil) returned nil")
	}
}
