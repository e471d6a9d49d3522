package policy

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"vigil/internal/domain"
)

const testPolicy = `package vigil.policy

default allow := false

deny[d] {
	trim(input.prompt, " \t\n") == ""
	d := {"code": "PROMPT_EMPTY", "message": "prompt must not be empty"}
}

deny[d] {
	contains(lower(input.prompt), "blocked")
	d := {"code": "PROMPT_BLOCKED", "message": "prompt contains blocked term"}
}

allow {
	count(deny) == 0
}

result := {"allow": allow, "deny": deny}
`

func newEngine(t *testing.T, policySource string) *Engine {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(policySource), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	engine, err := NewEngineFromBundlePath(context.Background(), dir)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestEngineDeterministic(t *testing.T) {
	engine := newEngine(t, testPolicy)
	input := domain.PolicyInput{SessionID: "s1", Prompt: "a calm landscape"}

	first, err := engine.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate first: %v", err)
	}
	second, err := engine.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected deterministic policy evaluation")
	}
	if !first.Result.Allow {
		t.Fatal("expected allow for baseline input")
	}
	if len(first.Result.Deny) != 0 {
		t.Fatalf("expected empty deny list, got %v", first.Result.Deny)
	}
	if first.BundleHash == "" {
		t.Fatal("expected bundle hash to be set")
	}
}

func TestEngineDeniesBlockedPrompt(t *testing.T) {
	engine := newEngine(t, testPolicy)

	eval, err := engine.Evaluate(context.Background(), domain.PolicyInput{SessionID: "s1", Prompt: "something BLOCKED here"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Result.Allow {
		t.Fatal("expected denial")
	}
	if len(eval.Result.Deny) != 1 || eval.Result.Deny[0].Code != "PROMPT_BLOCKED" {
		t.Fatalf("unexpected deny list: %v", eval.Result.Deny)
	}
}

func TestEngineDenyListSorted(t *testing.T) {
	engine := newEngine(t, testPolicy)

	eval, err := engine.Evaluate(context.Background(), domain.PolicyInput{SessionID: "s1", Prompt: ""})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Result.Allow {
		t.Fatal("expected denial for empty prompt")
	}
	codes := make([]string, 0, len(eval.Result.Deny))
	for _, d := range eval.Result.Deny {
		codes = append(codes, d.Code)
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] > codes[i] {
			t.Fatalf("deny codes not sorted: %v", codes)
		}
	}
}

func TestEngineRejectsForbiddenBuiltins(t *testing.T) {
	source := strings.Replace(testPolicy, `contains(lower(input.prompt), "blocked")`,
		`http.send({"method": "get", "url": "http://example.com"})`, 1)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(source), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := NewEngineFromBundlePath(context.Background(), dir); err == nil {
		t.Fatal("expected compile rejection for http.send")
	}
}

func TestBundleHashChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.rego")
	if err := os.WriteFile(path, []byte(testPolicy), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	first, err := ComputeBundleHashFromPath(dir)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := os.WriteFile(path, []byte(testPolicy+"\n# rev 2\n"), 0o600); err != nil {
		t.Fatalf("rewrite policy: %v", err)
	}
	second, err := ComputeBundleHashFromPath(dir)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("hash must change when policy content changes")
	}
}
