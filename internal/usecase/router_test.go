package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"vigil/internal/domain"
)

type fakeProvider struct {
	name  string
	err   error
	delay time.Duration
	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Generate(ctx context.Context, req domain.GenerationRequest) (domain.Artifact, error) {
	p.calls++
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return domain.Artifact{}, ctx.Err()
		}
	}
	if p.err != nil {
		return domain.Artifact{}, p.err
	}
	return domain.Artifact{ID: p.name + "-artifact", Data: []byte("img"), MIMEType: "image/png"}, nil
}

func TestRouterFirstProviderWins(t *testing.T) {
	primary := &fakeProvider{name: "stub"}
	fallback := &fakeProvider{name: "openai"}
	router := NewProviderRouter([]domain.ImageProvider{primary, fallback}, time.Second)

	outcome := router.Route(context.Background(), domain.GenerationRequest{Prompt: "p"})
	if !outcome.OK || outcome.Provider != "stub" {
		t.Fatalf("expected stub success, got %+v", outcome)
	}
	if len(outcome.Failures) != 0 {
		t.Fatalf("no failures expected, got %v", outcome.Failures)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not be attempted after success")
	}
}

func TestRouterFallsBackInOrder(t *testing.T) {
	first := &fakeProvider{name: "a", err: errors.New("capacity")}
	second := &fakeProvider{name: "b", err: domain.ErrProviderRejected}
	third := &fakeProvider{name: "c"}
	router := NewProviderRouter([]domain.ImageProvider{first, second, third}, time.Second)

	outcome := router.Route(context.Background(), domain.GenerationRequest{Prompt: "p"})
	if !outcome.OK || outcome.Provider != "c" {
		t.Fatalf("expected c success, got %+v", outcome)
	}
	if len(outcome.Failures) != 2 {
		t.Fatalf("expected two failures, got %v", outcome.Failures)
	}
	if outcome.Failures[0].Provider != "a" || outcome.Failures[1].Provider != "b" {
		t.Fatalf("failure order not preserved: %v", outcome.Failures)
	}
	if outcome.Failures[1].Reason != "rejected" {
		t.Fatalf("expected rejected reason, got %q", outcome.Failures[1].Reason)
	}
}

func TestRouterExhaustion(t *testing.T) {
	first := &fakeProvider{name: "a", err: errors.New("down")}
	second := &fakeProvider{name: "b", err: errors.New("down too")}
	router := NewProviderRouter([]domain.ImageProvider{first, second}, time.Second)

	outcome := router.Route(context.Background(), domain.GenerationRequest{Prompt: "p"})
	if outcome.OK {
		t.Fatal("expected exhaustion")
	}
	if outcome.Provider != "" || outcome.Artifact != nil {
		t.Fatalf("exhausted outcome must carry no artifact: %+v", outcome)
	}
	if len(outcome.Failures) != 2 {
		t.Fatalf("expected one failure per provider, got %v", outcome.Failures)
	}
}

func TestRouterAbandonsSlowProvider(t *testing.T) {
	slow := &fakeProvider{name: "slow", delay: 500 * time.Millisecond}
	fast := &fakeProvider{name: "fast"}
	router := NewProviderRouter([]domain.ImageProvider{slow, fast}, 20*time.Millisecond)

	start := time.Now()
	outcome := router.Route(context.Background(), domain.GenerationRequest{Prompt: "p"})
	if !outcome.OK || outcome.Provider != "fast" {
		t.Fatalf("expected fast success after timeout, got %+v", outcome)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("slow provider was not abandoned, took %v", elapsed)
	}
	if len(outcome.Failures) != 1 || !errors.Is(outcome.Failures[0].Err, domain.ErrProviderTimeout) {
		t.Fatalf("expected timeout failure, got %v", outcome.Failures)
	}
	if outcome.Failures[0].Reason != "timeout" {
		t.Fatalf("expected timeout reason, got %q", outcome.Failures[0].Reason)
	}
}

func TestRouterCancelledContextSkipsAttempts(t *testing.T) {
	p := &fakeProvider{name: "a"}
	router := NewProviderRouter([]domain.ImageProvider{p}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := router.Route(ctx, domain.GenerationRequest{Prompt: "p"})
	if outcome.OK {
		t.Fatal("cancelled request must not succeed")
	}
	if p.calls != 0 {
		t.Fatal("provider must not be called after cancellation")
	}
	if len(outcome.Failures) != 1 || outcome.Failures[0].Reason != "request cancelled" {
		t.Fatalf("expected cancellation failure, got %v", outcome.Failures)
	}
}
