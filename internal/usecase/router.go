package usecase

import (
	"context"
	"errors"
	"time"

	"vigil/internal/domain"
)

// ProviderRouter walks the ordered fallback chain, one provider at a time.
// Each attempt runs under its own deadline; an attempt that overruns it is
// abandoned and the chain moves on. Providers never run concurrently.
type ProviderRouter struct {
	chain   []domain.ImageProvider
	timeout time.Duration
	clock   func() time.Time
}

func NewProviderRouter(chain []domain.ImageProvider, timeout time.Duration) *ProviderRouter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProviderRouter{chain: chain, timeout: timeout, clock: time.Now}
}

type attemptResult struct {
	artifact domain.Artifact
	err      error
}

// Route tries each provider in order until one succeeds. Failures keep chain
// order in the outcome; exhaustion leaves OK false with one entry per
// provider attempted.
func (r *ProviderRouter) Route(ctx context.Context, req domain.GenerationRequest) domain.GenerationOutcome {
	started := r.clock()
	outcome := domain.GenerationOutcome{}

	for _, provider := range r.chain {
		if err := ctx.Err(); err != nil {
			outcome.Failures = append(outcome.Failures, domain.ProviderFailure{
				Provider: provider.Name(),
				Reason:   "request cancelled",
				Err:      err,
			})
			continue
		}

		artifact, err := r.attempt(ctx, provider, req)
		if err == nil {
			outcome.OK = true
			outcome.Provider = provider.Name()
			outcome.Artifact = &artifact
			outcome.Latency = r.clock().Sub(started)
			return outcome
		}
		outcome.Failures = append(outcome.Failures, domain.ProviderFailure{
			Provider: provider.Name(),
			Reason:   failureReason(err),
			Err:      err,
		})
	}

	outcome.Latency = r.clock().Sub(started)
	return outcome
}

// attempt runs one provider call in its own goroutine so a hung provider
// cannot stall the chain past the per-attempt deadline. The goroutine is
// abandoned on timeout; its eventual result is dropped.
func (r *ProviderRouter) attempt(ctx context.Context, provider domain.ImageProvider, req domain.GenerationRequest) (domain.Artifact, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		artifact, err := provider.Generate(attemptCtx, req)
		done <- attemptResult{artifact: artifact, err: err}
	}()

	select {
	case res := <-done:
		return res.artifact, res.err
	case <-attemptCtx.Done():
		return domain.Artifact{}, domain.ErrProviderTimeout
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrProviderTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrProviderRejected):
		return "rejected"
	default:
		return err.Error()
	}
}
