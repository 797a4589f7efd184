// Package agent provides the thin orchestration layer for the three named
// PDP agents — Policy Enforcement, Constraint Solver, Approval Routing —
// wiring pkg/engine, pkg/governance, pkg/constraint, pkg/approval,
// pkg/decision, pkg/cache, pkg/audit and pkg/facade into one request/
// response call per agent. No agent method performs I/O except through the
// facade interfaces it was constructed with.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/facade"
	"github.com/LLM-Dev-Ops/policy-engine/pkg/telemetry"
)

// Deps are the host-injected collaborators every agent shares.
type Deps struct {
	Records     facade.RecordSink
	Telemetry   facade.TelemetrySink
	Clock       facade.Clock
	IDs         facade.IDSource
	Tracer      *telemetry.Provider // may be nil; tracing becomes a no-op
	Environment string
	Logger      *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) clock() facade.Clock {
	if d.Clock != nil {
		return d.Clock
	}
	return facade.SystemClock{}
}

func (d Deps) ids() facade.IDSource {
	if d.IDs != nil {
		return d.IDs
	}
	return facade.UUIDSource{}
}

// executionRef builds the ExecutionRef embedded in every DecisionEvent from
// this invocation, stamping the repo span as trace/span id.
func (d Deps) executionRef(requestID, repoSpanID, sessionID string) contracts.ExecutionRef {
	return contracts.ExecutionRef{
		RequestID:   requestID,
		TraceID:     repoSpanID,
		SpanID:      repoSpanID,
		Environment: d.Environment,
		SessionID:   sessionID,
	}
}

// persist hands event to the record sink and mirrors it to the telemetry
// sink, both best-effort per spec §4.10: a failure here is logged and
// returned as a SinkError, never propagated as the agent call's own error.
func (d Deps) persist(ctx context.Context, event *contracts.DecisionEvent) []error {
	var sinkErrs []error

	if d.Records != nil {
		if ack, err := d.Records.Persist(ctx, facade.DecisionRecord{Event: event}); err != nil {
			d.logger().Warn("record sink failed", "event_id", event.EventID, "error", err)
			sinkErrs = append(sinkErrs, &SinkError{Sink: "record", Err: err})
		} else if !ack.Accepted {
			d.logger().Warn("record sink declined event", "event_id", event.EventID, "reason", ack.Reason)
		}
	}

	if d.Telemetry != nil {
		if err := d.Telemetry.Emit(ctx, facade.EventTelemetry{Event: event}); err != nil {
			d.logger().Warn("telemetry sink failed", "event_id", event.EventID, "error", err)
			sinkErrs = append(sinkErrs, &SinkError{Sink: "telemetry", Err: err})
		}
	}

	return sinkErrs
}

// persistSpans mirrors a finished span tree to the record and telemetry
// sinks and, when a tracer is configured, to OpenTelemetry.
func (d Deps) persistSpans(ctx context.Context, repo *contracts.ExecutionSpan, children []*contracts.ExecutionSpan) {
	spans := append([]*contracts.ExecutionSpan{repo}, children...)
	for _, span := range spans {
		if d.Telemetry != nil {
			if err := d.Telemetry.Emit(ctx, facade.SpanTelemetry{Span: span}); err != nil {
				d.logger().Warn("telemetry sink failed for span", "span_id", span.SpanID, "error", err)
			}
		}
		if d.Tracer != nil {
			d.Tracer.RecordSpan(ctx, span)
		}
	}
}

// nowFn adapts a facade.Clock to the func() time.Time shape decision.Builder
// and engine callers expect.
func nowFn(clock facade.Clock) func() time.Time {
	return clock.Now
}

// idFn adapts a facade.IDSource to the func() string shape decision.Builder
// expects.
func idFn(ids facade.IDSource) func() string {
	return ids.NewID
}
