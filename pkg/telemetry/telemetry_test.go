package telemetry

import (
	"context"
	"testing"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

func TestNew_DisabledProviderIsInert(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, span := p.StartSpan(context.Background(), "test-span")
	if ctx == nil || span == nil {
		t.Fatal("expected a valid no-op span even when tracing is disabled")
	}
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestProvider_RecordSpanDoesNotPanicWhenDisabled(t *testing.T) {
	p, err := New(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.RecordSpan(context.Background(), &contracts.ExecutionSpan{
		Type:     contracts.SpanAgent,
		SpanID:   "s1",
		RepoName: "policy-engine",
		Status:   contracts.SpanFailed,
		Error:    "boom",
	})
}

func TestProvider_MeterIsUsable(t *testing.T) {
	p, err := New(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Meter() == nil {
		t.Fatal("expected a non-nil meter even when tracing is disabled")
	}
	if _, err := p.Meter().Int64Counter("test_counter"); err != nil {
		t.Errorf("unexpected error creating counter: %v", err)
	}
}

func TestRecordDecision_DoesNotPanic(t *testing.T) {
	RecordDecision("policy-enforcement-agent", "allow", 0.01)
	RecordConstraintOutcome("constraints_satisfied", "priority_based")
	RecordApprovalOutcome("auto_approved")
	RecordCacheLookup(true)
	RecordCorpusSize(3)
}
