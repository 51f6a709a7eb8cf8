package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunzeritter/docpipeline/internal/config"
	"github.com/kunzeritter/docpipeline/internal/model"
	"github.com/kunzeritter/docpipeline/internal/pipelineerr"
)

func testPolicy() config.ServiceRetryPolicy {
	return config.ServiceRetryPolicy{
		MaxRetries:       3,
		BaseDelaySeconds: 1,
		MaxDelaySeconds:  8,
		ExponentialBase:  2,
		JitterEnabled:    false,
	}
}

func TestDelay_CapsAtMaxDelay(t *testing.T) {
	p := testPolicy()
	assert.Equal(t, time.Second, Delay(p, 0))
	assert.Equal(t, 2*time.Second, Delay(p, 1))
	assert.Equal(t, 4*time.Second, Delay(p, 2))
	// 1 * 2^5 = 32s, capped to the 8s max_delay.
	assert.Equal(t, 8*time.Second, Delay(p, 5))
}

func TestDelay_JitterStaysWithinEnvelope(t *testing.T) {
	p := testPolicy()
	p.JitterEnabled = true
	for i := 0; i < 50; i++ {
		d := Delay(p, 2)
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

type fakeRecorder struct {
	attempts []model.PipelineError
}

func (f *fakeRecorder) RecordAttempt(_ context.Context, pe model.PipelineError) error {
	f.attempts = append(f.attempts, pe)
	return nil
}

func TestAttempt_RetriesTransientUntilMaxRetries(t *testing.T) {
	rec := &fakeRecorder{}
	p := testPolicy()
	var prior model.PipelineError

	transient := &pipelineerr.TransientServiceError{Service: "embedder", Err: errors.New("timeout")}

	pe, _, retry, err := Attempt(context.Background(), rec, p, prior, "corr-1", model.StageName("embedding_and_search"), transient)
	require.NoError(t, err)
	assert.True(t, retry)
	assert.Equal(t, model.PipelineErrorRetrying, pe.Status)
	assert.Equal(t, 1, pe.RetryCount)
	require.NotNil(t, pe.NextRetryAt)

	pe, _, retry, err = Attempt(context.Background(), rec, p, pe, "corr-1", model.StageName("embedding_and_search"), transient)
	require.NoError(t, err)
	assert.True(t, retry)
	assert.Equal(t, 2, pe.RetryCount)

	pe, _, retry, err = Attempt(context.Background(), rec, p, pe, "corr-1", model.StageName("embedding_and_search"), transient)
	require.NoError(t, err)
	assert.True(t, retry)
	assert.Equal(t, 3, pe.RetryCount)

	// Fourth total attempt: retry_count (3) has reached max_retries (3), so
	// this call gives up without a fifth increment.
	pe, _, retry, err = Attempt(context.Background(), rec, p, pe, "corr-1", model.StageName("embedding_and_search"), transient)
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Equal(t, model.PipelineErrorGaveUp, pe.Status)
	assert.Equal(t, 3, pe.RetryCount)
	assert.Nil(t, pe.NextRetryAt)

	assert.Len(t, rec.attempts, 4)
}

func TestAttempt_PermanentErrorNeverRetries(t *testing.T) {
	rec := &fakeRecorder{}
	p := testPolicy()
	var prior model.PipelineError

	permanent := &pipelineerr.ValidationError{Field: "manufacturer", Message: "not in closed vocabulary"}

	pe, _, retry, err := Attempt(context.Background(), rec, p, prior, "corr-2", model.StageName("classification"), permanent)
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Equal(t, model.PipelineErrorGaveUp, pe.Status)
	assert.Equal(t, 0, pe.RetryCount)
}

func TestResolve_SetsResolvedAt(t *testing.T) {
	rec := &fakeRecorder{}
	prior := model.PipelineError{CorrelationID: "corr-3", StageName: "upload", RetryCount: 2, Status: model.PipelineErrorRetrying}

	require.NoError(t, Resolve(context.Background(), rec, prior, "succeeded on manual requeue"))
	require.Len(t, rec.attempts, 1)
	assert.Equal(t, model.PipelineErrorResolved, rec.attempts[0].Status)
	assert.NotNil(t, rec.attempts[0].ResolvedAt)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	p := testPolicy()
	p.BaseDelaySeconds = 0.01
	p.MaxDelaySeconds = 0.02

	calls := 0
	result, err := Do(context.Background(), p, func() (string, error) {
		calls++
		if calls < 2 {
			return "", &pipelineerr.TransientServiceError{Service: "scrape", Err: errors.New("connection reset")}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, calls)
}

func TestDo_StopsImmediatelyOnPermanentError(t *testing.T) {
	p := testPolicy()
	calls := 0
	_, err := Do(context.Background(), p, func() (string, error) {
		calls++
		return "", &pipelineerr.PermanentServiceError{Service: "vision", Err: errors.New("bad request")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
