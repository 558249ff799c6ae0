package worker_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/solweekly/weekly-roundup/internal/domain"
	"github.com/solweekly/weekly-roundup/internal/worker"
)

func recipients(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("r%02d@x.io", i)
	}
	return out
}

func ok(_ context.Context, r string) domain.DeliveryOutcome {
	return domain.DeliveryOutcome{Recipient: r, Success: true, MessageID: "id-" + r}
}

func TestBatchRunner_BatchesAndPause(t *testing.T) {
	const pause = 40 * time.Millisecond

	var mu sync.Mutex
	var starts []time.Time
	var sizes []int
	runner := worker.NewBatchRunner(10, pause, zap.NewNop(), worker.Hooks{
		OnBatchStart: func(_, size int) {
			mu.Lock()
			defer mu.Unlock()
			starts = append(starts, time.Now())
			sizes = append(sizes, size)
		},
	})

	rs := recipients(25)
	outcomes := runner.Run(context.Background(), rs, ok)

	if len(starts) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(starts))
	}
	if sizes[0] != 10 || sizes[1] != 10 || sizes[2] != 5 {
		t.Fatalf("unexpected batch sizes %v", sizes)
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < pause {
			t.Fatalf("batch %d started %v after previous, expected >= %v", i, gap, pause)
		}
	}

	if len(outcomes) != 25 {
		t.Fatalf("expected 25 outcomes, got %d", len(outcomes))
	}
	seen := map[string]int{}
	for i, o := range outcomes {
		seen[o.Recipient]++
		if o.Recipient != rs[i] {
			t.Fatalf("outcome %d out of order: %s", i, o.Recipient)
		}
	}
	for _, r := range rs {
		if seen[r] != 1 {
			t.Fatalf("recipient %s appeared %d times", r, seen[r])
		}
	}
	if runner.Batches(25) != 3 {
		t.Fatalf("expected Batches(25)=3, got %d", runner.Batches(25))
	}
}

func TestBatchRunner_ConcurrentWithinBatch(t *testing.T) {
	var inFlight, peak atomic.Int32
	runner := worker.NewBatchRunner(5, 0, zap.NewNop(), worker.Hooks{})

	runner.Run(context.Background(), recipients(10), func(ctx context.Context, r string) domain.DeliveryOutcome {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return ok(ctx, r)
	})

	if peak.Load() > 5 {
		t.Fatalf("concurrency exceeded batch size: %d", peak.Load())
	}
	if peak.Load() < 2 {
		t.Fatalf("expected concurrent sends within a batch, peak=%d", peak.Load())
	}
}

func TestBatchRunner_FailureDoesNotAbort(t *testing.T) {
	runner := worker.NewBatchRunner(3, 0, zap.NewNop(), worker.Hooks{})
	rs := recipients(7)

	outcomes := runner.Run(context.Background(), rs, func(ctx context.Context, r string) domain.DeliveryOutcome {
		switch r {
		case rs[1]:
			return domain.DeliveryOutcome{Error: "rejected"}
		case rs[4]:
			panic("boom")
		}
		return ok(ctx, r)
	})

	failed := 0
	for _, o := range outcomes {
		if !o.Success {
			failed++
		}
	}
	if failed != 2 {
		t.Fatalf("expected 2 failures, got %d (%+v)", failed, outcomes)
	}
	if outcomes[1].Recipient != rs[1] || outcomes[4].Recipient != rs[4] {
		t.Fatal("failed outcomes must carry their recipient")
	}
}

func TestBatchRunner_CancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := worker.NewBatchRunner(2, time.Minute, zap.NewNop(), worker.Hooks{
		OnBatchStart: func(index, _ int) {
			if index == 0 {
				cancel()
			}
		},
	})

	outcomes := runner.Run(ctx, recipients(5), ok)

	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}
	if !outcomes[0].Success || !outcomes[1].Success {
		t.Fatal("first batch should have been delivered")
	}
	for _, o := range outcomes[2:] {
		if o.Success || o.Error == "" {
			t.Fatalf("expected aborted outcome, got %+v", o)
		}
	}
}
