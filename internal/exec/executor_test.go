package exec

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type mockSubmitter struct {
	mu     sync.Mutex
	orders []Order
	err    error
}

func (m *mockSubmitter) Submit(ctx context.Context, order Order) (Receipt, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Receipt{}, m.err
	}
	m.orders = append(m.orders, order)
	return Receipt{Status: StatusSubmitted, OrderID: "oid-1"}, nil
}

func (m *mockSubmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func newTestExecutor(submitter Submitter) (*Executor, *time.Time) {
	e := New(submitter, "ETH", 15*time.Second, zap.NewNop())
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }
	return e, &clock
}

func TestSetHedgeCooldownDropsSecondAttempt(t *testing.T) {
	submitter := &mockSubmitter{}
	e, clock := newTestExecutor(submitter)
	ctx := context.Background()

	_, disp, err := e.SetHedge(ctx, -10, 0, nil)
	if err != nil || disp != DispositionSubmitted {
		t.Fatalf("first attempt should submit: disp=%v err=%v", disp, err)
	}

	*clock = clock.Add(5 * time.Second)
	_, disp, err = e.SetHedge(ctx, -12, -10, nil)
	if err != nil {
		t.Fatalf("in-window attempt should drop silently, got %v", err)
	}
	if disp != DispositionThrottled {
		t.Fatalf("in-window attempt should be throttled, got %v", disp)
	}
	if submitter.count() != 1 {
		t.Fatalf("expected 1 order, got %d", submitter.count())
	}

	*clock = clock.Add(11 * time.Second)
	_, disp, err = e.SetHedge(ctx, -12, -10, nil)
	if err != nil || disp != DispositionSubmitted {
		t.Fatalf("post-window attempt should submit: disp=%v err=%v", disp, err)
	}
	if submitter.count() != 2 {
		t.Fatalf("expected 2 orders, got %d", submitter.count())
	}
}

func TestSetHedgeSubmitsFullTarget(t *testing.T) {
	submitter := &mockSubmitter{}
	e, _ := newTestExecutor(submitter)

	if _, _, err := e.SetHedge(context.Background(), -12, -10, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order := submitter.orders[0]
	if order.Side != SideSell || order.Size != 12 {
		t.Fatalf("expected sell 12 (full target, not the increment), got %+v", order)
	}
}

func TestSetHedgeSides(t *testing.T) {
	submitter := &mockSubmitter{}
	e, clock := newTestExecutor(submitter)
	ctx := context.Background()

	if _, _, err := e.SetHedge(ctx, -10, 0, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	*clock = clock.Add(time.Minute)
	if _, _, err := e.SetHedge(ctx, 10, 2, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if submitter.orders[0].Side != SideSell || submitter.orders[0].Size != 10 {
		t.Fatalf("expected sell 10, got %+v", submitter.orders[0])
	}
	if submitter.orders[1].Side != SideBuy || submitter.orders[1].Size != 10 {
		t.Fatalf("expected buy 10, got %+v", submitter.orders[1])
	}
}

func TestSetHedgeNoChange(t *testing.T) {
	submitter := &mockSubmitter{}
	e, _ := newTestExecutor(submitter)

	_, disp, err := e.SetHedge(context.Background(), -10, -10, nil)
	if err != nil || disp != DispositionNoChange {
		t.Fatalf("no-op adjustment should report no change: disp=%v err=%v", disp, err)
	}
	if submitter.count() != 0 {
		t.Fatalf("expected no orders, got %d", submitter.count())
	}
}

func TestSetHedgeNoChangeInsideWindowIsNotThrottled(t *testing.T) {
	submitter := &mockSubmitter{}
	e, clock := newTestExecutor(submitter)
	ctx := context.Background()

	if _, _, err := e.SetHedge(ctx, -10, 0, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	*clock = clock.Add(5 * time.Second)
	_, disp, err := e.SetHedge(ctx, -10, -10, nil)
	if err != nil || disp != DispositionNoChange {
		t.Fatalf("no size change should not count as throttled: disp=%v err=%v", disp, err)
	}
	_, disp, _ = e.SetHedge(ctx, -12, -10, nil)
	if disp != DispositionThrottled {
		t.Fatalf("real change inside window should be throttled, got %v", disp)
	}
}

func TestSetHedgeWindowOpensBeforeSubmit(t *testing.T) {
	submitter := &mockSubmitter{err: errors.New("venue down")}
	e, clock := newTestExecutor(submitter)
	ctx := context.Background()

	_, disp, err := e.SetHedge(ctx, -10, 0, nil)
	if err == nil {
		t.Fatal("failing submit should surface an error")
	}
	if disp != DispositionFailed {
		t.Fatalf("failed submit must not report an accepted order, got %v", disp)
	}

	// the failed attempt still opened the window
	*clock = clock.Add(5 * time.Second)
	submitter.err = nil
	_, disp, err = e.SetHedge(ctx, -10, 0, nil)
	if err != nil || disp != DispositionThrottled {
		t.Fatalf("retry inside window should drop: disp=%v err=%v", disp, err)
	}
}
