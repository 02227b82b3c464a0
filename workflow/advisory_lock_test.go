package workflow

import (
	"context"
	"errors"
	"testing"
)

// Without a store there is nothing to contend for: the tick body must still
// run exactly once rather than being skipped.
func TestWithWorkerLock_NoStoreRunsBodyOnce(t *testing.T) {
	calls := 0
	err := WithWorkerLock(context.Background(), nil, "anchor-worker", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("WithWorkerLock: %v", err)
	}
	if calls != 1 {
		t.Fatalf("body ran %d times, want 1", calls)
	}
}

func TestWithWorkerLock_BodyErrorPropagates(t *testing.T) {
	boom := errors.New("claim failed")
	err := WithWorkerLock(context.Background(), nil, "chainop-worker", func() error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithWorkerLock = %v, want the body's error", err)
	}
}
