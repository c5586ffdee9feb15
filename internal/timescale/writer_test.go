package timescale

import (
	"context"
	"testing"
	"time"

	"lp-hedge-bot/internal/config"

	"go.uber.org/zap"
)

func TestNewDisabledReturnsNil(t *testing.T) {
	w, err := New(config.TimescaleConfig{Enabled: false}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != nil {
		t.Fatal("disabled sink should be nil")
	}
}

func TestNewEnabledRequiresDSN(t *testing.T) {
	if _, err := New(config.TimescaleConfig{Enabled: true}, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing dsn")
	}
}

func TestNilWriterIsSafe(t *testing.T) {
	var w *Writer
	w.Start(context.Background())
	w.EnqueueCycle(CycleSnapshot{Time: time.Now()})
	w.EnqueueExecution(ExecutionEvent{Time: time.Now()})
	if err := w.Close(); err != nil {
		t.Fatalf("nil writer close: %v", err)
	}
}
