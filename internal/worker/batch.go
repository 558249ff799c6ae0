package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/solweekly/weekly-roundup/internal/domain"
)

// DeliverFunc sends to one recipient and reports the outcome. It must not
// panic, but a panic is recovered and recorded as a failure.
type DeliverFunc func(ctx context.Context, recipient string) domain.DeliveryOutcome

// Hooks carries optional callbacks injected by main for metrics.
// Using a struct keeps the runner constructor signature clean.
type Hooks struct {
	OnBatchStart func(index, size int)
	OnBatchDone  func(index, size int, elapsed time.Duration)
}

// BatchRunner fans out deliveries in fixed-size batches. All sends in a
// batch run concurrently; the next batch starts only after every send in the
// current one has settled and the pause has elapsed.
type BatchRunner struct {
	size   int
	pause  time.Duration
	logger *zap.Logger
	hooks  Hooks
}

func NewBatchRunner(size int, pause time.Duration, logger *zap.Logger, hooks Hooks) *BatchRunner {
	if size < 1 {
		size = 1
	}
	if hooks.OnBatchStart == nil {
		hooks.OnBatchStart = func(int, int) {}
	}
	if hooks.OnBatchDone == nil {
		hooks.OnBatchDone = func(int, int, time.Duration) {}
	}
	return &BatchRunner{size: size, pause: pause, logger: logger, hooks: hooks}
}

// Batches returns how many batches n recipients are split into.
func (r *BatchRunner) Batches(n int) int {
	return (n + r.size - 1) / r.size
}

// Run delivers to every recipient exactly once and returns the outcomes in
// recipient order. It never fails: if ctx is cancelled between batches the
// remaining recipients are reported as failed.
func (r *BatchRunner) Run(ctx context.Context, recipients []string, deliver DeliverFunc) []domain.DeliveryOutcome {
	outcomes := make([]domain.DeliveryOutcome, len(recipients))

	for index, start := 0, 0; start < len(recipients); index, start = index+1, start+r.size {
		end := min(start+r.size, len(recipients))

		if index > 0 {
			if err := sleep(ctx, r.pause); err != nil {
				r.logger.Warn("send aborted between batches",
					zap.Int("batch", index), zap.Int("remaining", len(recipients)-start), zap.Error(err))
				for i := start; i < len(recipients); i++ {
					outcomes[i] = domain.DeliveryOutcome{Recipient: recipients[i], Error: "send aborted: " + err.Error()}
				}
				return outcomes
			}
		}

		began := time.Now()
		r.hooks.OnBatchStart(index, end-start)

		// deliverOne never fails, so Wait only marks the batch settled.
		var g errgroup.Group
		g.SetLimit(r.size)
		for i := start; i < end; i++ {
			g.Go(func() error {
				outcomes[i] = r.deliverOne(ctx, recipients[i], deliver)
				return nil
			})
		}
		_ = g.Wait()

		r.hooks.OnBatchDone(index, end-start, time.Since(began))
		r.logger.Debug("batch settled", zap.Int("batch", index), zap.Int("size", end-start))
	}

	return outcomes
}

func (r *BatchRunner) deliverOne(ctx context.Context, recipient string, deliver DeliverFunc) (out domain.DeliveryOutcome) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("delivery panicked", zap.Any("panic", p))
			out = domain.DeliveryOutcome{Recipient: recipient, Error: fmt.Sprintf("internal error: %v", p)}
		}
	}()
	out = deliver(ctx, recipient)
	out.Recipient = recipient
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
