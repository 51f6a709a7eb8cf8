// Package retry implements the Retry Subsystem (spec.md §4.8): per-service
// exponential backoff with jitter, transient/permanent classification, and a
// durable audit trail of every attempt keyed by (correlation_id, stage_name).
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/pipelineerr"
)

// Delay computes spec.md §4.8's backoff formula:
//
//	delay = min(max_delay, base_delay * exponential_base^retry_count) ± jitter
//
// retryCount is the retry being scheduled; Attempt passes 1 for the first
// retry, so the first delay is base_delay * exponential_base.
// Jitter is applied as a uniform ±25% of the computed delay when the policy
// enables it, so two documents failing the same stage at the same moment
// don't all wake up and hammer the service on the same tick.
func Delay(policy config.ServiceRetryPolicy, retryCount int) time.Duration {
	base := policy.BaseDelaySeconds
	if base <= 0 {
		base = config.DefaultRetryPolicy.BaseDelaySeconds
	}
	expBase := policy.ExponentialBase
	if expBase <= 0 {
		expBase = config.DefaultRetryPolicy.ExponentialBase
	}
	raw := base * math.Pow(expBase, float64(retryCount))
	if max := policy.MaxDelaySeconds; max > 0 && raw > max {
		raw = max
	}
	if policy.JitterEnabled {
		raw += raw * (rand.Float64()*0.5 - 0.25)
		if raw < 0 {
			raw = 0
		}
	}
	return time.Duration(raw * float64(time.Second))
}

// backOff adapts policy to a cenkalti/backoff/v5 ExponentialBackOff so
// in-process call retries (Do, below) share the same envelope as the
// persisted, cross-invocation schedule computed by Delay.
func backOff(policy config.ServiceRetryPolicy) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	base := policy.BaseDelaySeconds
	if base <= 0 {
		base = config.DefaultRetryPolicy.BaseDelaySeconds
	}
	b.InitialInterval = time.Duration(base * float64(time.Second))
	b.MaxInterval = time.Duration(policy.MaxDelaySeconds * float64(time.Second))
	b.Multiplier = policy.ExponentialBase
	if b.Multiplier <= 1 {
		b.Multiplier = config.DefaultRetryPolicy.ExponentialBase
	}
	if !policy.JitterEnabled {
		b.RandomizationFactor = 0
	} else {
		b.RandomizationFactor = 0.25
	}
	return b
}

// Do retries fn within a single call site (e.g. one HTTP round trip to the
// embedder or vision service) until it succeeds, fn returns a permanent
// error per pipelineerr.IsTransient, ctx is cancelled, or policy.MaxRetries
// retries (MaxRetries+1 calls of fn in all) are exhausted. It does not persist anything; PipelineError
// bookkeeping across scheduler re-invocations of a whole stage is Record's
// job, below.
func Do[T any](ctx context.Context, policy config.ServiceRetryPolicy, fn func() (T, error)) (T, error) {
	maxRetries := policy.MaxRetries
	if maxRetries <= 0 {
		maxRetries = config.DefaultRetryPolicy.MaxRetries
	}
	op := func() (T, error) {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !pipelineerr.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(backOff(policy)), backoff.WithMaxTries(uint(maxRetries+1)))
}

// Recorder persists one PipelineError row per attempt. Implementations
// upsert by (CorrelationID, StageName) and must leave RetryCount
// monotonically increasing, per spec.md §4.8.
type Recorder interface {
	RecordAttempt(ctx context.Context, pe model.PipelineError) error
}

// Attempt folds one stage-execution failure into the PipelineError audit
// row for (correlationID, stageName), advances its retry count, and decides
// whether the stage should be retried. prior is the existing row (zero
// value if this is the first failure seen for this key). The returned
// PipelineError is always persisted via rec before Attempt returns.
//
// When the failure does not classify as transient, or retry_count reaches
// policy.MaxRetries, the row's Status becomes gave_up and retry is false:
// the caller must transition the owning document to processing_status
// failed (spec.md §4.8, §7).
func Attempt(ctx context.Context, rec Recorder, policy config.ServiceRetryPolicy, prior model.PipelineError, correlationID string, stageName model.StageName, failure error) (pe model.PipelineError, retryAfter time.Duration, retry bool, err error) {
	pe = prior
	pe.CorrelationID = correlationID
	pe.StageName = stageName
	pe.ErrorMessage = failure.Error()
	pe.ErrorCategory = string(pipelineerr.CategoryOf(failure))
	pe.IsTransient = pipelineerr.IsTransient(failure)
	if pe.MaxRetries == 0 {
		pe.MaxRetries = policy.MaxRetries
		if pe.MaxRetries <= 0 {
			pe.MaxRetries = config.DefaultRetryPolicy.MaxRetries
		}
	}

	// Decide on the pre-increment count: retry_count only advances when
	// another attempt is actually scheduled, so a policy of max_retries=3
	// gives up on the 4th total call to Attempt, with RetryCount landing on
	// 3 (== MaxRetries), not 4 (spec.md §4.8, §7).
	retry = pe.IsTransient && pe.RetryCount < pe.MaxRetries
	if retry {
		pe.RetryCount++
		pe.Status = model.PipelineErrorRetrying
		retryAfter = Delay(policy, pe.RetryCount)
		next := time.Now().Add(retryAfter)
		pe.NextRetryAt = &next
	} else {
		pe.Status = model.PipelineErrorGaveUp
		pe.NextRetryAt = nil
	}

	if err = rec.RecordAttempt(ctx, pe); err != nil {
		return pe, 0, false, err
	}
	return pe, retryAfter, retry, nil
}

// Resolve marks a PipelineError row resolved once its stage succeeds after
// one or more failed attempts, per spec.md §4.8 ("Resolution... sets
// resolved_at"). Callers only need this when prior had RetryCount > 0;
// stages that succeed on the first attempt never create a row.
func Resolve(ctx context.Context, rec Recorder, prior model.PipelineError, notes string) error {
	now := time.Now()
	prior.Status = model.PipelineErrorResolved
	prior.ResolvedAt = &now
	prior.ResolutionNotes = notes
	prior.NextRetryAt = nil
	return rec.RecordAttempt(ctx, prior)
}
