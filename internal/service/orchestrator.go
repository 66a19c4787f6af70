package service

import (
	"context"
	"fmt"
	"time"

	"github.com/marovole/HearthBulter/internal/diff"
	"github.com/marovole/HearthBulter/internal/metrics"
	"github.com/marovole/HearthBulter/internal/model"
	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/constraints"
	"github.com/marovole/HearthBulter/pkg/logger"

	"go.uber.org/zap"
)

// BackendCall is one backend's side of a logical operation. Both the
// legacy store and supabase are modeled identically at this boundary;
// retries, if any, belong to the backend client behind the callable.
type BackendCall func(ctx context.Context) (any, error)

// BackendError attributes a call failure to one backend.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend call failed: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// FlagSource yields the current dual-write toggles for one execution.
type FlagSource interface {
	Snapshot(ctx context.Context) v1.Flags
}

// DiffSink accepts comparison outcomes, best-effort.
type DiffSink interface {
	Record(ctx context.Context, rec *model.DiffRecord)
}

type callOutcome struct {
	value any
	err   error
}

// Orchestrator executes a logical operation against one or both backends
// according to the flags and returns the authoritative backend's result.
//
// Authority and dual-write flip independently: a backend is invoked iff
// dual-write is on or it is the authoritative one, giving the four states
// single-write-legacy, single-write-supabase, and dual-write with either
// side authoritative. The caller never waits on the non-authoritative
// call; comparison and recording run after the response on a bounded
// background pool. Nothing past the authoritative result can fail the
// caller's request.
type Orchestrator struct {
	flags         FlagSource
	engine        *diff.Engine
	classifier    *diff.Classifier
	recorder      DiffSink
	tasks         *TaskPool
	obs           metrics.DualWriteObserver
	asyncLifetime time.Duration
}

func NewOrchestrator(flags FlagSource, engine *diff.Engine, classifier *diff.Classifier, recorder DiffSink, tasks *TaskPool, obs metrics.DualWriteObserver, asyncLifetime time.Duration) *Orchestrator {
	if asyncLifetime <= 0 {
		asyncLifetime = 15 * time.Second
	}
	return &Orchestrator{
		flags:         flags,
		engine:        engine,
		classifier:    classifier,
		recorder:      recorder,
		tasks:         tasks,
		obs:           obs,
		asyncLifetime: asyncLifetime,
	}
}

// Execute runs one logical operation. The returned value and error are
// exactly the authoritative backend's; a shadow failure surfaces only as
// an error-severity diff record.
func (o *Orchestrator) Execute(ctx context.Context, endpoint, operation string, legacy, supabase BackendCall) (any, error) {
	flags := o.flags.Snapshot(ctx)
	traceID := TraceIDFromContext(ctx)

	if !flags.EnableDualWrite {
		if flags.EnableSupabasePrimary {
			return o.single(ctx, constraints.BackendSupabase, supabase)
		}
		return o.single(ctx, constraints.BackendLegacy, legacy)
	}

	authBackend, authCall := constraints.BackendLegacy, legacy
	shadowBackend, shadowCall := constraints.BackendSupabase, supabase
	if flags.EnableSupabasePrimary {
		authBackend, authCall = constraints.BackendSupabase, supabase
		shadowBackend, shadowCall = constraints.BackendLegacy, legacy
	}

	// The shadow runs detached from the caller's cancellation but under a
	// hard lifetime, so cancelled requests still yield a comparison while
	// background work stays bounded.
	shadowCtx, cancelShadow := context.WithTimeout(context.WithoutCancel(ctx), o.asyncLifetime)
	shadowCh := o.invoke(shadowCtx, shadowBackend, shadowCall)
	authCh := o.invoke(ctx, authBackend, authCall)

	auth := <-authCh
	o.obs.RecordComparison(endpoint)

	spawned := o.tasks.TrySpawn(func() {
		defer cancelShadow()
		var shadow callOutcome
		select {
		case shadow = <-shadowCh:
		case <-shadowCtx.Done():
			shadow = callOutcome{err: &BackendError{Backend: shadowBackend, Err: shadowCtx.Err()}}
		}

		primary, secondary := auth, shadow
		if authBackend == constraints.BackendSupabase {
			primary, secondary = shadow, auth
		}
		o.compareAndRecord(shadowCtx, endpoint, operation, traceID, primary, secondary)
	})
	if !spawned {
		cancelShadow()
		o.obs.RecordDroppedComparison()
		logger.Warn("comparison dropped, task pool full",
			zap.String("endpoint", endpoint),
			zap.String("operation", operation))
	}

	return auth.value, auth.err
}

func (o *Orchestrator) single(ctx context.Context, backend string, call BackendCall) (any, error) {
	out := <-o.invoke(ctx, backend, call)
	return out.value, out.err
}

func (o *Orchestrator) invoke(ctx context.Context, backend string, call BackendCall) <-chan callOutcome {
	ch := make(chan callOutcome, 1)
	go func() {
		start := time.Now()
		value, err := func() (v any, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &BackendError{Backend: backend, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			return call(ctx)
		}()
		o.obs.ObserveBackendCall(backend, time.Since(start).Seconds(), err != nil)
		ch <- callOutcome{value: value, err: err}
	}()
	return ch
}

// compareAndRecord builds the diff record for one (legacy, supabase)
// result pair. It runs on the task pool, after the caller already has its
// response, and must never raise back into the request path.
func (o *Orchestrator) compareAndRecord(ctx context.Context, endpoint, operation, traceID string, primary, secondary callOutcome) {
	rec := &model.DiffRecord{
		APIEndpoint:           endpoint,
		Operation:             operation,
		Diff:                  "[]",
		PrimaryResultStatus:   callStatus(primary),
		SecondaryResultStatus: callStatus(secondary),
		TraceID:               traceID,
	}

	if primary.err != nil || secondary.err != nil {
		// A rejected call is always an error-severity record; the diff
		// itself stays empty since there is nothing to compare against.
		rec.Severity = constraints.SeverityError
		if primary.err != nil {
			logger.Warn("dual-write backend rejected", zap.String("endpoint", endpoint),
				zap.String("backend", constraints.BackendLegacy), zap.Error(primary.err))
		}
		if secondary.err != nil {
			logger.Warn("dual-write backend rejected", zap.String("endpoint", endpoint),
				zap.String("backend", constraints.BackendSupabase), zap.Error(secondary.err))
		}
	} else {
		ops, truncated, failed := o.safeCompare(primary.value, secondary.value)
		switch {
		case failed:
			rec.Severity = constraints.SeverityWarning
			rec.NeedsReview = true
			ops = []v1.DiffOp{{Op: constraints.OpReplace, Path: "/", Value: "diff computation failed"}}
		default:
			rec.Severity = o.classifier.Classify(endpoint, ops)
			rec.NeedsReview = truncated
		}
		if payload, err := diff.MarshalOps(ops); err == nil {
			rec.Diff = payload
		} else {
			logger.Error("diff payload marshal failed", zap.String("endpoint", endpoint), zap.Error(err))
			rec.Severity = constraints.SeverityWarning
			rec.NeedsReview = true
		}
	}

	o.obs.RecordDiff(endpoint, rec.Severity)
	o.recorder.Record(ctx, rec)
}

func (o *Orchestrator) safeCompare(a, b any) (ops []v1.DiffOp, truncated, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("diff engine panicked", zap.Any("panic", r))
			failed = true
		}
	}()
	ops, truncated = o.engine.Compare(a, b)
	return
}

func callStatus(out callOutcome) string {
	if out.err != nil {
		return constraints.StatusRejected
	}
	return constraints.StatusFulfilled
}

// Wait drains in-flight comparisons, for shutdown.
func (o *Orchestrator) Wait() {
	o.tasks.Wait()
}
