package main

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAwaitStop_ListenerFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	errCh := make(chan error, 1)
	bindErr := errors.New("listen tcp :8000: bind: address already in use")
	errCh <- bindErr

	err := awaitStop(context.Background(), errCh, zap.New(core))
	if !errors.Is(err, bindErr) {
		t.Fatalf("awaitStop = %v, want %v", err, bindErr)
	}
	if logs.FilterMessage("server failed").Len() != 1 {
		t.Errorf("expected a server failed entry, got %v", logs.All())
	}
}

func TestAwaitStop_Signal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := awaitStop(ctx, make(chan error), zap.NewNop()); err != nil {
		t.Fatalf("awaitStop = %v, want nil", err)
	}
}
