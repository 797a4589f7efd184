package audit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// ErrNoAgentSpan is the invariant violation of spec §4.8: a repo span that
// closes without ever having opened at least one agent span underneath it.
var ErrNoAgentSpan = errors.New("audit: repo span closed with no agent span")

// ErrSpanNotFound is returned when finishing or attaching to a span id the
// tree does not recognize.
var ErrSpanNotFound = errors.New("audit: span not found")

// SpanTree tracks one repo span and its child agent spans. Causal order
// runs external parent -> repo span -> agent span; the repo span is created
// on entry and finalized last, after every agent span beneath it has
// finished.
type SpanTree struct {
	mu       sync.Mutex
	now      func() time.Time
	ids      func() string
	repo     *contracts.ExecutionSpan
	children []*contracts.ExecutionSpan
	byID     map[string]*contracts.ExecutionSpan
}

// StartRepoSpan opens a repo span parented to an externally supplied
// parentSpanID (empty if this is a root invocation).
func StartRepoSpan(repoName, parentSpanID string) *SpanTree {
	t := &SpanTree{
		now:  time.Now,
		ids:  func() string { return uuid.New().String() },
		byID: make(map[string]*contracts.ExecutionSpan),
	}
	t.repo = &contracts.ExecutionSpan{
		Type:         contracts.SpanRepo,
		SpanID:       t.ids(),
		ParentSpanID: parentSpanID,
		RepoName:     repoName,
		Status:       contracts.SpanRunning,
		StartTime:    t.now(),
	}
	t.byID[t.repo.SpanID] = t.repo
	return t
}

// RepoSpanID returns the id of the tree's repo span, for stamping onto
// outgoing ExecutionRefs.
func (t *SpanTree) RepoSpanID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.SpanID
}

// StartAgentSpan opens an agent span parented to the repo span.
func (t *SpanTree) StartAgentSpan(agentName string) *contracts.ExecutionSpan {
	t.mu.Lock()
	defer t.mu.Unlock()

	span := &contracts.ExecutionSpan{
		Type:         contracts.SpanAgent,
		SpanID:       t.ids(),
		ParentSpanID: t.repo.SpanID,
		RepoName:     t.repo.RepoName,
		AgentName:    agentName,
		Status:       contracts.SpanRunning,
		StartTime:    t.now(),
	}
	t.children = append(t.children, span)
	t.byID[span.SpanID] = span
	return span
}

// AddArtifact attaches an artifact to the span it was produced by. The span
// must still be running.
func (t *SpanTree) AddArtifact(spanID string, artifactType, reference string) (*contracts.Artifact, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	span, ok := t.byID[spanID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpanNotFound, spanID)
	}
	if span.Status != contracts.SpanRunning {
		return nil, fmt.Errorf("audit: span %s is no longer running", spanID)
	}
	artifact := contracts.Artifact{
		ID:             t.ids(),
		Type:           artifactType,
		Reference:      reference,
		ProducerSpanID: spanID,
	}
	span.Artifacts = append(span.Artifacts, artifact)
	return &artifact, nil
}

// FinishAgentSpan closes an agent span as completed (err == nil) or failed.
func (t *SpanTree) FinishAgentSpan(spanID string, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	span, ok := t.byID[spanID]
	if !ok || span.Type != contracts.SpanAgent {
		return fmt.Errorf("%w: %s", ErrSpanNotFound, spanID)
	}
	finish(span, t.now(), err)
	return nil
}

// FinishRepo closes the repo span last, after every agent span has
// finished. It enforces the tree's one hard invariant: at least one agent
// span must have been opened. Violating it marks the repo span failed with
// ErrNoAgentSpan regardless of the caller's own error, since a repo span
// with no agent work underneath it never represents a real decision.
func (t *SpanTree) FinishRepo(err error) (*contracts.ExecutionSpan, []*contracts.ExecutionSpan, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.children) == 0 {
		finish(t.repo, t.now(), ErrNoAgentSpan)
		return t.repo, nil, ErrNoAgentSpan
	}

	for _, child := range t.children {
		if child.Status == contracts.SpanRunning {
			finish(child, t.now(), errors.New("audit: agent span still running at repo finish"))
		}
	}

	finish(t.repo, t.now(), err)
	return t.repo, append([]*contracts.ExecutionSpan(nil), t.children...), err
}

func finish(span *contracts.ExecutionSpan, at time.Time, err error) {
	if span.Status != contracts.SpanRunning {
		return
	}
	span.EndTime = &at
	if err != nil {
		span.Status = contracts.SpanFailed
		span.Error = err.Error()
		return
	}
	span.Status = contracts.SpanCompleted
}
