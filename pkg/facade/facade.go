// Package facade defines the integration façade of spec §4.10: the
// host-injected capabilities the core consumes but never implements
// directly — policy source, record sink, telemetry sink, clock, and id
// source. In-memory default implementations back the core's own tests; a
// Postgres-backed pair lives in pkg/facade/postgres as the reference host
// adapter.
package facade

import (
	"context"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// PolicySource lists and looks up policies from wherever the host stores
// them.
type PolicySource interface {
	ListActive(ctx context.Context) ([]contracts.Policy, error)
	Find(ctx context.Context, id string, version string) (*contracts.Policy, error)
}

// Ack is the result of a best-effort record-sink write: failure never
// aborts a decision, it only downgrades the Ack.
type Ack struct {
	Accepted bool
	Reason   string
}

// Record is the closed set of artifacts a RecordSink persists.
type Record interface {
	isRecord()
}

// DecisionRecord wraps a DecisionEvent for RecordSink.Persist.
type DecisionRecord struct{ Event *contracts.DecisionEvent }

func (DecisionRecord) isRecord() {}

// AuditRecord wraps an AuditEntry for RecordSink.Persist.
type AuditRecord struct{ Entry *contracts.AuditEntry }

func (AuditRecord) isRecord() {}

// RecordSink persists DecisionEvents and AuditEntries best-effort; a
// failure is reported via Ack, never by aborting the caller's decision.
type RecordSink interface {
	Persist(ctx context.Context, record Record) (Ack, error)
}

// TelemetryItem is the closed set of things a TelemetrySink emits.
type TelemetryItem interface {
	isTelemetryItem()
}

// SpanTelemetry wraps an ExecutionSpan for TelemetrySink.Emit.
type SpanTelemetry struct{ Span *contracts.ExecutionSpan }

func (SpanTelemetry) isTelemetryItem() {}

// EventTelemetry wraps a DecisionEvent for TelemetrySink.Emit.
type EventTelemetry struct{ Event *contracts.DecisionEvent }

func (EventTelemetry) isTelemetryItem() {}

// TelemetrySink emits spans and events best-effort; same contract as
// RecordSink.
type TelemetrySink interface {
	Emit(ctx context.Context, item TelemetryItem) error
}

// Clock supplies monotonic and wall-clock time to components that need it
// (e.g. time-restricted auto-approval).
type Clock interface {
	Now() time.Time
}

// IDSource generates UUIDv4 identifiers for events and spans.
type IDSource interface {
	NewID() string
}

// SystemClock is the real wall-clock Clock implementation.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
