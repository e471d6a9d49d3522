package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"vigil/internal/domain"
	"vigil/internal/infra/drift"
	"vigil/internal/infra/eventlog"
	"vigil/internal/infra/metrics"
	"vigil/internal/infra/pulse"
)

type stubArtifacts struct {
	url   string
	err   error
	saved []domain.Artifact
}

func (s *stubArtifacts) Save(_ context.Context, art domain.Artifact) (string, error) {
	s.saved = append(s.saved, art)
	return s.url, s.err
}

type stubReferences struct {
	enabled bool
	art     domain.Artifact
	err     error
}

func (s *stubReferences) Enabled() bool { return s.enabled }

func (s *stubReferences) Default() (domain.Artifact, error) { return s.art, s.err }

type stubImages struct {
	recs []domain.ImageRecord
	err  error
}

func (s *stubImages) Insert(_ context.Context, rec domain.ImageRecord) (domain.ImageRecord, error) {
	if s.err != nil {
		return domain.ImageRecord{}, s.err
	}
	s.recs = append(s.recs, rec)
	return rec, nil
}

type stubPolicy struct {
	eval domain.PolicyEvaluation
	err  error
}

func (s *stubPolicy) Evaluate(context.Context, domain.PolicyInput) (domain.PolicyEvaluation, error) {
	return s.eval, s.err
}

type pulseCall struct {
	scope   string
	failure bool
}

type stubPulse struct {
	calls []pulseCall
}

func (s *stubPulse) RecordOutcome(scope string, failure bool, _ time.Time) bool {
	s.calls = append(s.calls, pulseCall{scope: scope, failure: failure})
	return false
}

type pipelineFixture struct {
	pipeline  *GenerateImage
	metrics   *metrics.Registry
	events    *eventlog.Log
	pulse     *stubPulse
	artifacts *stubArtifacts
	images    *stubImages
}

func newPipeline(t *testing.T, providers []domain.ImageProvider, mutate func(*GenerateImageDeps)) *pipelineFixture {
	t.Helper()
	reg := metrics.NewRegistry()
	log := eventlog.New()
	recorder := &stubPulse{}
	arts := &stubArtifacts{url: "file:///outputs/a.png"}
	images := &stubImages{}
	strategy := &fakeStrategy{method: domain.DriftMethodPHash, available: true, value: 0.1}

	deps := GenerateImageDeps{
		Router:          NewProviderRouter(providers, time.Second),
		Scorer:          NewDriftScorer([]drift.Strategy{strategy}, 0.35, reg, log),
		Metrics:         reg,
		Events:          log,
		Pulse:           recorder,
		Artifacts:       arts,
		References:      &stubReferences{enabled: true, art: domain.Artifact{ID: "ref-1"}},
		Images:          images,
		DriftPreference: domain.DriftMethodAuto,
	}
	if mutate != nil {
		mutate(&deps)
	}
	return &pipelineFixture{
		pipeline:  NewGenerateImage(deps),
		metrics:   reg,
		events:    log,
		pulse:     recorder,
		artifacts: arts,
		images:    images,
	}
}

func TestGenerateSuccessPath(t *testing.T) {
	f := newPipeline(t, []domain.ImageProvider{&fakeProvider{name: "stub"}}, nil)

	res, err := f.pipeline.Execute(context.Background(), domain.GenerationRequest{SessionID: "s1", Prompt: "a fox"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Provider != "stub" || res.URL != "file:///outputs/a.png" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.ReferenceUsed || !res.Drift.Defined || res.Drift.Method != domain.DriftMethodPHash {
		t.Fatalf("drift not scored: %+v", res)
	}

	snap := f.metrics.Snapshot()
	for _, name := range []string{"generate.requests", "generate.ok", "generate.ok.stub", "ref.used"} {
		if snap.Counters[name] != 1 {
			t.Fatalf("counter %s = %d", name, snap.Counters[name])
		}
	}
	okEvents := f.events.Query(domain.EventGenerateOK, 10)
	if got := len(okEvents); got != 1 {
		t.Fatalf("expected one generate.ok event, got %d", got)
	}
	if got := okEvents[0].Payload["prompt_hash"]; got != domain.PromptHash("a fox") {
		t.Fatalf("prompt_hash = %v", got)
	}
	if len(f.pulse.calls) != 1 || f.pulse.calls[0] != (pulseCall{scope: pulse.GlobalScope, failure: false}) {
		t.Fatalf("unexpected pulse calls %v", f.pulse.calls)
	}
	if len(f.images.recs) != 1 {
		t.Fatalf("expected one persisted record, got %d", len(f.images.recs))
	}
	rec := f.images.recs[0]
	if rec.Provider != "stub" || !rec.ReferenceUsed || rec.DriftScore == nil || *rec.DriftScore != 0.1 {
		t.Fatalf("record incomplete: %+v", rec)
	}
}

func TestGenerateFallbackRecordsFailedAttempt(t *testing.T) {
	providers := []domain.ImageProvider{
		&fakeProvider{name: "a", err: errors.New("down")},
		&fakeProvider{name: "b"},
	}
	f := newPipeline(t, providers, func(d *GenerateImageDeps) { d.PulsePerProvider = true })

	res, err := f.pipeline.Execute(context.Background(), domain.GenerationRequest{SessionID: "s1", Prompt: "p"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Provider != "b" || len(res.Failures) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	snap := f.metrics.Snapshot()
	if snap.Counters["generate.fail.a"] != 1 || snap.Counters["generate.ok.b"] != 1 {
		t.Fatalf("per-provider counters wrong: %v", snap.Counters)
	}

	want := []pulseCall{
		{scope: pulse.ProviderScope("a"), failure: true},
		{scope: pulse.GlobalScope, failure: false},
		{scope: pulse.ProviderScope("b"), failure: false},
	}
	if len(f.pulse.calls) != len(want) {
		t.Fatalf("pulse calls %v", f.pulse.calls)
	}
	for i := range want {
		if f.pulse.calls[i] != want[i] {
			t.Fatalf("pulse call %d = %v, want %v", i, f.pulse.calls[i], want[i])
		}
	}
}

func TestGenerateExhaustion(t *testing.T) {
	providers := []domain.ImageProvider{
		&fakeProvider{name: "a", err: errors.New("down")},
		&fakeProvider{name: "b", err: errors.New("down too")},
	}
	f := newPipeline(t, providers, nil)

	_, err := f.pipeline.Execute(context.Background(), domain.GenerationRequest{SessionID: "s1", Prompt: "p"})
	if !errors.Is(err, domain.ErrAllProvidersExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || len(exhausted.Failures) != 2 {
		t.Fatalf("expected per-provider failures, got %v", err)
	}

	snap := f.metrics.Snapshot()
	if snap.Counters["generate.exhausted"] != 1 || snap.Counters["generate.fail.a"] != 1 || snap.Counters["generate.fail.b"] != 1 {
		t.Fatalf("counters wrong: %v", snap.Counters)
	}
	if snap.Counters["generate.ok"] != 0 {
		t.Fatal("no success counter expected")
	}
	if got := len(f.events.Query(domain.EventGenerateFail, 10)); got != 1 {
		t.Fatalf("expected one generate.fail event, got %d", got)
	}
	if len(f.pulse.calls) != 1 || !f.pulse.calls[0].failure {
		t.Fatalf("expected one global failure outcome, got %v", f.pulse.calls)
	}
	if len(f.artifacts.saved) != 0 {
		t.Fatal("nothing must be persisted on exhaustion")
	}
}

func TestGeneratePolicyDenial(t *testing.T) {
	provider := &fakeProvider{name: "stub"}
	f := newPipeline(t, []domain.ImageProvider{provider}, func(d *GenerateImageDeps) {
		d.Policy = &stubPolicy{eval: domain.PolicyEvaluation{
			BundleHash: "h1",
			Result: domain.PolicyResult{
				Allow: false,
				Deny:  []domain.PolicyDeny{{Code: "PROMPT_BLOCKED"}},
			},
		}}
	})

	_, err := f.pipeline.Execute(context.Background(), domain.GenerationRequest{SessionID: "s1", Prompt: "blocked"})
	if !errors.Is(err, domain.ErrPolicyDenied) {
		t.Fatalf("expected policy denial, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatal("denied request must not reach providers")
	}
	if f.metrics.Snapshot().Counters["generate.denied"] != 1 {
		t.Fatal("generate.denied counter expected")
	}
	if got := len(f.events.Query(domain.EventPolicyDenied, 10)); got != 1 {
		t.Fatalf("expected one policy.denied event, got %d", got)
	}
}

func TestGenerateArtifactStoreFailureDegrades(t *testing.T) {
	f := newPipeline(t, []domain.ImageProvider{&fakeProvider{name: "stub"}}, func(d *GenerateImageDeps) {
		d.Artifacts = &stubArtifacts{err: errors.New("disk full")}
	})

	res, err := f.pipeline.Execute(context.Background(), domain.GenerationRequest{SessionID: "s1", Prompt: "p"})
	if err != nil {
		t.Fatalf("persistence failure must not fail the request: %v", err)
	}
	if res.URL != "" {
		t.Fatalf("expected empty url, got %q", res.URL)
	}
	if f.metrics.Snapshot().Counters["generate.ok"] != 1 {
		t.Fatal("success must still be counted")
	}
}

func TestGenerateWithoutReferenceSkipsDrift(t *testing.T) {
	f := newPipeline(t, []domain.ImageProvider{&fakeProvider{name: "stub"}}, func(d *GenerateImageDeps) {
		d.References = &stubReferences{enabled: false}
	})

	res, err := f.pipeline.Execute(context.Background(), domain.GenerationRequest{SessionID: "s1", Prompt: "p"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.ReferenceUsed || res.Drift.Defined || res.Drift.Method != domain.DriftMethodNone {
		t.Fatalf("drift must be undefined without a reference: %+v", res)
	}
	if f.metrics.Snapshot().Counters["ref.used"] != 0 {
		t.Fatal("ref.used must not be counted")
	}
}

func TestGenerateImageRecordFailureDegrades(t *testing.T) {
	f := newPipeline(t, []domain.ImageProvider{&fakeProvider{name: "stub"}}, func(d *GenerateImageDeps) {
		d.Images = &stubImages{err: errors.New("db gone")}
	})

	if _, err := f.pipeline.Execute(context.Background(), domain.GenerationRequest{SessionID: "s1", Prompt: "p"}); err != nil {
		t.Fatalf("db failure must not fail the request: %v", err)
	}
}
