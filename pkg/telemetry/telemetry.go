// Package telemetry wires structured metrics and tracing across the
// record pipeline, ledger, router, and dispatcher using OpenTelemetry, in
// the ambient-observability style SPEC_FULL.md §2 calls for.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ransomeye/core/pkg/rerrors"
)

const instrumentationName = "github.com/ransomeye/core"

// Metrics bundles the counters/histograms RansomEye's hot paths emit.
type Metrics struct {
	RecordsCreated    metric.Int64Counter
	LedgerAppends     metric.Int64Counter
	RoutingDecisions  metric.Int64Counter
	DispatchOutcomes  metric.Int64Counter
	ValidatorChecks   metric.Int64Counter
}

// Provider bundles a metric.MeterProvider and a trace.TracerProvider plus
// the pre-built Metrics instruments, so callers construct it once at
// process startup and pass it down.
type Provider struct {
	MeterProvider *sdkmetric.MeterProvider
	TracerProvider *trace.TracerProvider
	Metrics       Metrics
	Tracer        oteltrace.Tracer
}

// New builds a Provider using the given metric reader (a
// sdkmetric.Reader, e.g. an OTLP exporter's reader or a manual reader in
// tests) and span processor. Both are supplied by the caller so this
// package stays agnostic of the concrete exporter transport.
func New(reader sdkmetric.Reader, spanProcessor trace.SpanProcessor) (*Provider, error) {
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(spanProcessor))

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	meter := mp.Meter(instrumentationName)

	recordsCreated, err := meter.Int64Counter("ransomeye.records.created",
		metric.WithDescription("records constructed by RecordFactory, by kind"))
	if err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "telemetry.New", "records.created counter", err)
	}
	ledgerAppends, err := meter.Int64Counter("ransomeye.ledger.appends",
		metric.WithDescription("ledger entries appended"))
	if err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "telemetry.New", "ledger.appends counter", err)
	}
	routingDecisions, err := meter.Int64Counter("ransomeye.routing.decisions",
		metric.WithDescription("routing decisions emitted, by action"))
	if err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "telemetry.New", "routing.decisions counter", err)
	}
	dispatchOutcomes, err := meter.Int64Counter("ransomeye.dispatch.outcomes",
		metric.WithDescription("command dispatch outcomes, by result"))
	if err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "telemetry.New", "dispatch.outcomes counter", err)
	}
	validatorChecks, err := meter.Int64Counter("ransomeye.validator.checks",
		metric.WithDescription("replay validator check results, by check_type and status"))
	if err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "telemetry.New", "validator.checks counter", err)
	}

	return &Provider{
		MeterProvider:  mp,
		TracerProvider: tp,
		Tracer:         tp.Tracer(instrumentationName),
		Metrics: Metrics{
			RecordsCreated:   recordsCreated,
			LedgerAppends:    ledgerAppends,
			RoutingDecisions: routingDecisions,
			DispatchOutcomes: dispatchOutcomes,
			ValidatorChecks:  validatorChecks,
		},
	}, nil
}

// Shutdown flushes and stops both providers; callers defer this at
// process exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		return rerrors.New(rerrors.IOFailure, "telemetry.Shutdown", "tracer provider", err)
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return rerrors.New(rerrors.IOFailure, "telemetry.Shutdown", "meter provider", err)
	}
	return nil
}

// RecordCreated increments the records-created counter for kind.
func (p *Provider) RecordCreated(ctx context.Context, kind string) {
	p.Metrics.RecordsCreated.Add(ctx, 1, metric.WithAttributes(attrKind(kind)))
}

// LedgerAppended increments the ledger-appends counter.
func (p *Provider) LedgerAppended(ctx context.Context, recordKind string) {
	p.Metrics.LedgerAppends.Add(ctx, 1, metric.WithAttributes(attrKind(recordKind)))
}

// RoutingDecided increments the routing-decisions counter for the chosen
// action.
func (p *Provider) RoutingDecided(ctx context.Context, action string) {
	p.Metrics.RoutingDecisions.Add(ctx, 1, metric.WithAttributes(attrAction(action)))
}

// DispatchCompleted increments the dispatch-outcomes counter for outcome
// ("delivered", "delivery_failed", "delivery_timeout").
func (p *Provider) DispatchCompleted(ctx context.Context, outcome string) {
	p.Metrics.DispatchOutcomes.Add(ctx, 1, metric.WithAttributes(attrOutcome(outcome)))
}

// ValidatorCheckCompleted increments the validator-checks counter for a
// single check phase's pass/fail result.
func (p *Provider) ValidatorCheckCompleted(ctx context.Context, checkType string, passed bool) {
	status := "pass"
	if !passed {
		status = "fail"
	}
	p.Metrics.ValidatorChecks.Add(ctx, 1, metric.WithAttributes(attrCheck(checkType), attrStatus(status)))
}
