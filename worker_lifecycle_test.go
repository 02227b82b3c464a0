package main

import (
	"context"
	"testing"
	"time"
)

// DB-free lifecycle checks: Run must return promptly on Stop or context
// cancellation, Stop must be idempotent, and TriggerNow must never block.

func TestAnchorWorker_StopIdempotent(t *testing.T) {
	w := NewAnchorWorker(nil, nil, nil)
	w.Stop()
	w.Stop()
}

func TestChainOpWorker_StopIdempotent(t *testing.T) {
	w := NewChainOpWorker(nil, nil, nil)
	w.Stop()
	w.Stop()
}

func TestAnchorWorker_RunReturnsOnStop(t *testing.T) {
	w := NewAnchorWorker(nil, nil, nil)
	w.Stop()

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestChainOpWorker_RunReturnsOnCancel(t *testing.T) {
	w := NewChainOpWorker(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTriggerNow_NeverBlocks(t *testing.T) {
	aw := NewAnchorWorker(nil, nil, nil)
	ow := NewChainOpWorker(nil, nil, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			aw.TriggerNow()
			ow.TriggerNow()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("TriggerNow blocked with no loop consuming")
	}
}
