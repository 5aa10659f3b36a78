package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/DomainLens/internal/adapter/otel"
	"github.com/Strob0t/DomainLens/internal/domain"
	"github.com/Strob0t/DomainLens/internal/domain/analysis"
	"github.com/Strob0t/DomainLens/internal/domain/batch"
	"github.com/Strob0t/DomainLens/internal/logger"
	"github.com/Strob0t/DomainLens/internal/port/messagequeue"
	"github.com/Strob0t/DomainLens/internal/port/taskstore"
	"github.com/Strob0t/DomainLens/internal/workpool"
)

// DefaultMaxDomains caps the size of a single batch.
const DefaultMaxDomains = 1000

// ErrShuttingDown is returned by Submit once Shutdown has started.
var ErrShuttingDown = errors.New("batch service is shutting down")

var errCancelled = errors.New(batch.ErrCancelled)

// DomainAnalyzer scores a single domain. Implementations report failures in
// the returned result instead of an error.
type DomainAnalyzer interface {
	Analyze(ctx context.Context, domain string) analysis.Result
}

// BatchService validates domain lists, runs them through the shared worker
// pool and drives each Task to a terminal state.
type BatchService struct {
	store      taskstore.Store
	analyzer   DomainAnalyzer
	pool       *workpool.Pool
	maxDomains int

	bus     messagequeue.Publisher
	metrics *otel.Metrics

	baseCtx context.Context
	stop    context.CancelCauseFunc

	mu      sync.Mutex
	running map[string]*batchRun
	closed  bool
	wg      sync.WaitGroup

	now   func() time.Time
	newID func() string
}

type batchRun struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// NewBatchService creates a BatchService. maxDomains <= 0 uses DefaultMaxDomains.
func NewBatchService(store taskstore.Store, analyzer DomainAnalyzer, pool *workpool.Pool, maxDomains int) *BatchService {
	if maxDomains <= 0 {
		maxDomains = DefaultMaxDomains
	}
	ctx, stop := context.WithCancelCause(context.Background())
	return &BatchService{
		store:      store,
		analyzer:   analyzer,
		pool:       pool,
		maxDomains: maxDomains,
		baseCtx:    ctx,
		stop:       stop,
		running:    make(map[string]*batchRun),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// SetPublisher enables batch lifecycle events on the message bus.
func (s *BatchService) SetPublisher(p messagequeue.Publisher) { s.bus = p }

// SetMetrics enables batch and domain metrics.
func (s *BatchService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// ValidateDomains trims entries, drops blanks and normalizes the rest.
func (s *BatchService) ValidateDomains(domains []string) ([]string, error) {
	cleaned := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.TrimSpace(d); d != "" {
			cleaned = append(cleaned, analysis.NormalizeDomain(d))
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: domain list is empty", domain.ErrValidation)
	}
	if len(cleaned) > s.maxDomains {
		return nil, fmt.Errorf("%w: too many domains (%d > %d)", domain.ErrValidation, len(cleaned), s.maxDomains)
	}
	return cleaned, nil
}

// Submit creates a Task for domains and starts processing it in the
// background. The returned snapshot is in the starting state.
func (s *BatchService) Submit(ctx context.Context, domains []string) (*batch.Task, error) {
	t, _, err := s.submit(ctx, domains)
	return t, err
}

// Analyze submits domains and waits for the Task to finish. If ctx ends
// first, Analyze returns the latest snapshot together with ctx.Err() and the
// batch keeps running.
func (s *BatchService) Analyze(ctx context.Context, domains []string) (*batch.Task, error) {
	t, done, err := s.submit(ctx, domains)
	if err != nil {
		return nil, err
	}

	select {
	case <-done:
	case <-ctx.Done():
		if snap, getErr := s.store.Get(context.WithoutCancel(ctx), t.ID); getErr == nil {
			t = snap
		}
		return t, ctx.Err()
	}
	return s.store.Get(ctx, t.ID)
}

// Get returns a snapshot of the task.
func (s *BatchService) Get(ctx context.Context, id string) (*batch.Task, error) {
	return s.store.Get(ctx, id)
}

// Cancel stops a batch running in this process. The Task ends failed with
// error "cancelled". Finished tasks yield domain.ErrConflict.
func (s *BatchService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	r, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		r.cancel(errCancelled)
		return nil
	}

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("cancel task %s: %w: task already %s", id, domain.ErrConflict, t.Status)
	}
	return fmt.Errorf("cancel task %s: %w: task is not running in this process", id, domain.ErrConflict)
}

// Running returns the number of batches in flight.
func (s *BatchService) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Shutdown rejects new submissions, cancels running batches and waits for
// them to record their final state or for ctx to end.
func (s *BatchService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop(errCancelled)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("batch shutdown: %w", ctx.Err())
	}
}

func (s *BatchService) submit(ctx context.Context, domains []string) (*batch.Task, <-chan struct{}, error) {
	cleaned, err := s.ValidateDomains(domains)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil, ErrShuttingDown
	}

	t := batch.New(s.newID(), cleaned, s.now())
	if err := s.store.Create(ctx, t); err != nil {
		return nil, nil, fmt.Errorf("create task: %w", err)
	}

	runCtx, cancel := context.WithCancelCause(s.baseCtx)
	if reqID := logger.RequestID(ctx); reqID != "" {
		runCtx = logger.WithRequestID(runCtx, reqID)
	}
	r := &batchRun{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel(errCancelled)
		s.finish(context.WithoutCancel(runCtx), t.ID, nil, batch.ErrCancelled)
		close(r.done)
		return t, r.done, nil
	}
	s.running[t.ID] = r
	s.wg.Add(1)
	s.mu.Unlock()

	slog.InfoContext(ctx, "batch submitted", "task_id", t.ID, "domains", len(cleaned))
	go s.run(runCtx, r, t.ID, cleaned)
	return t, r.done, nil
}

// run drives one Task from starting to a terminal state.
func (s *BatchService) run(ctx context.Context, r *batchRun, id string, domains []string) {
	start := s.now()
	ctx, span := otel.StartBatchSpan(ctx, id, len(domains))
	defer span.End()
	defer s.wg.Done()
	defer close(r.done)
	defer r.cancel(nil)

	s.metrics.RecordBatchStart(ctx)

	results, reason := s.execute(ctx, r, id, domains)

	s.mu.Lock()
	delete(s.running, id)
	s.mu.Unlock()
	if reason == "" && ctx.Err() != nil {
		reason = cancelReason(ctx)
	}

	completed := s.finish(context.WithoutCancel(ctx), id, results, reason)
	s.metrics.RecordBatchEnd(ctx, completed, s.now().Sub(start))
}

// execute fans the domains out over the pool. It returns the ordered results
// or a non-empty failure reason.
func (s *BatchService) execute(ctx context.Context, r *batchRun, id string, domains []string) (results []analysis.Result, reason string) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("batch orchestration panic", "task_id", id, "panic", p)
			results, reason = nil, fmt.Sprintf("internal error: %v", p)
		}
	}()

	if err := s.store.Update(ctx, id, func(t *batch.Task) error {
		return t.StartProcessing(s.now())
	}); err != nil {
		return nil, err.Error()
	}

	total := len(domains)
	results = make([]analysis.Result, total)

	var (
		completed atomic.Int64
		wg        sync.WaitGroup
		errOnce   sync.Once
		abortErr  error
	)
	abort := func(err error) {
		errOnce.Do(func() {
			abortErr = err
			r.cancel(err)
		})
	}
	for i, d := range domains {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					slog.Error("batch worker panic", "task_id", id, "panic", p)
					abort(fmt.Errorf("internal error: %v", p))
				}
			}()

			err := s.pool.Run(ctx, func() {
				results[i] = s.analyzeOne(ctx, d)
			})
			if err != nil {
				return
			}

			n := int(completed.Add(1))
			if n == total {
				return
			}
			progress := float64(n) / float64(total) * 100
			if err := s.store.Update(ctx, id, func(t *batch.Task) error {
				return t.AdvanceProgress(progress, s.now())
			}); err != nil && ctx.Err() == nil {
				abort(err)
			}
		}()
	}
	wg.Wait()

	if abortErr != nil {
		return nil, abortErr.Error()
	}
	if ctx.Err() != nil {
		return nil, cancelReason(ctx)
	}
	return results, ""
}

// analyzeOne isolates a single domain: a panic becomes that domain's error result.
func (s *BatchService) analyzeOne(ctx context.Context, d string) (res analysis.Result) {
	start := s.now()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("domain analysis panic", "domain", d, "panic", p)
			res = analysis.Failure(d, fmt.Sprintf("internal error: %v", p))
		}
		s.metrics.RecordDomain(ctx, res.Succeeded(), s.now().Sub(start))
	}()
	return s.analyzer.Analyze(ctx, d)
}

// finish writes the terminal state and publishes the lifecycle event. It
// reports whether the task completed.
func (s *BatchService) finish(ctx context.Context, id string, results []analysis.Result, reason string) bool {
	var summary analysis.Summary
	err := s.store.Update(ctx, id, func(t *batch.Task) error {
		if reason != "" {
			return t.Fail(reason, s.now())
		}
		summary = analysis.Summarize(results)
		return t.Complete(results, summary, s.now())
	})
	if err != nil && reason == "" {
		reason = err.Error()
		err = s.store.Update(ctx, id, func(t *batch.Task) error {
			return t.Fail(reason, s.now())
		})
	}
	if err != nil {
		slog.Error("batch final state not recorded", "task_id", id, "reason", reason, "error", err)
	}

	payload := messagequeue.BatchEventPayload{TaskID: id}
	subject := messagequeue.SubjectBatchCompleted
	if reason == "" {
		payload.Status = string(batch.StatusCompleted)
		payload.Summary = &summary
		slog.InfoContext(ctx, "batch completed", "task_id", id, "domains", summary.TotalDomains,
			"success_rate", summary.SuccessRate)
	} else {
		subject = messagequeue.SubjectBatchFailed
		payload.Status = string(batch.StatusFailed)
		payload.Error = reason
		slog.WarnContext(ctx, "batch failed", "task_id", id, "error", reason)
	}
	s.publish(ctx, subject, payload)
	return reason == ""
}

func (s *BatchService) publish(ctx context.Context, subject string, payload messagequeue.BatchEventPayload) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal batch event", "task_id", payload.TaskID, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		slog.Error("failed to publish batch event", "task_id", payload.TaskID, "subject", subject, "error", err)
	}
}

// cancelReason maps a cancelled run context to the Task error message.
func cancelReason(ctx context.Context) string {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, errCancelled) || errors.Is(cause, context.Canceled) {
		return batch.ErrCancelled
	}
	return cause.Error()
}
