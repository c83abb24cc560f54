package batch

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/queue"
	"reframe/internal/services"
	"reframe/internal/workflow"
)

// DefaultConcurrency applies when neither the manifest nor the caller sets one.
const DefaultConcurrency = 2

// Outcome is the result of one manifest entry.
type Outcome struct {
	Index  int
	Spec   queue.Spec
	Result job.Result
	Err    error
}

// Progress receives coordinator events tagged with the entry index.
type Progress func(index int, evt job.Event)

// Run executes specs through runner with at most concurrency jobs in flight.
// Outcomes come back in input order. Cancelling ctx stops queued entries from
// starting; they report the context error.
func Run(ctx context.Context, runner workflow.Runner, specs []queue.Spec, concurrency int, progress Progress, logger *slog.Logger) []Outcome {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "batch")

	outcomes := make([]Outcome, len(specs))
	var mu sync.Mutex
	var group errgroup.Group
	group.SetLimit(concurrency)

	for i, spec := range specs {
		outcomes[i] = Outcome{Index: i, Spec: spec}
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			req, err := workflow.RequestFromSpec(spec)
			if err != nil {
				outcomes[i].Err = err
				return nil
			}
			observe := func(evt job.Event) {
				if progress == nil {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				progress(i, evt)
			}
			result, err := runner.Run(ctx, req, observe)
			outcomes[i].Result = result
			outcomes[i].Err = err
			if err != nil {
				logging.WarnWithContext(logger, "batch entry failed", "batch_entry_failed",
					logging.Int("entry", i+1),
					logging.String("source", spec.SourcePath),
					logging.String("error_kind", services.Kind(err)),
					logging.Error(err),
					logging.String(logging.FieldImpact, "remaining entries continue"),
				)
				return nil
			}
			logger.Info("batch entry finished",
				logging.String(logging.FieldEventType, "batch_entry_finished"),
				logging.Int("entry", i+1),
				logging.String("output", result.OutputPath),
				logging.String("caption_status", string(result.CaptionStatus)),
			)
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

// Summary counts outcomes.
type Summary struct {
	Succeeded int
	Failed    int
}

// Summarize tallies succeeded and failed outcomes.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		if o.Err == nil && o.Result.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
