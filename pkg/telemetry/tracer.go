package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/o3go/o3go/pkg/command"
)

// Common attribute keys for o3 spans.
var (
	AttrSession  = attribute.Key("o3.session")
	AttrBackend  = attribute.Key("o3.backend")
	AttrCommand  = attribute.Key("o3.command")
	AttrOpType   = attribute.Key("o3.op_type")
	AttrCategory = attribute.Key("o3.category")
	AttrTag      = attribute.Key("o3.tag")
	AttrSeq      = attribute.Key("o3.seq")
	AttrCode     = attribute.Key("o3.status.code")
	AttrErrKind  = attribute.Key("o3.error.kind")
	AttrScript   = attribute.Key("o3.script")
)

// Tracer wraps the OpenTelemetry tracer provider.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer creates a tracer exporting per cfg. With the none exporter
// spans are sampled and dropped, which keeps trace ids in logs.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion string) (*Tracer, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		exporter, err = createOTLPExporter(cfg)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none", "":
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}
	if exporter != nil {
		batch := []sdktrace.BatchSpanProcessorOption{}
		if cfg.ExportTimeout > 0 {
			batch = append(batch, sdktrace.WithExportTimeout(cfg.ExportTimeout))
		}
		opts = append(opts, sdktrace.WithBatcher(exporter, batch...))
	}

	return newTracer(sdktrace.NewTracerProvider(opts...), serviceName), nil
}

// NewTracerWithProvider wraps an existing provider, e.g. one recording
// spans in tests.
func NewTracerWithProvider(provider *sdktrace.TracerProvider, name string) *Tracer {
	return &Tracer{provider: provider, tracer: provider.Tracer(name)}
}

func newTracer(provider *sdktrace.TracerProvider, serviceName string) *Tracer {
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)
	return &Tracer{provider: provider, tracer: provider.Tracer(serviceName)}
}

// createOTLPExporter creates an OTLP gRPC exporter.
func createOTLPExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	return otlptracegrpc.New(context.Background(), opts...)
}

// Start begins a new span with the given name and attributes.
func (t *Tracer) Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// StartScriptSpan starts the span covering a whole script run.
func (t *Tracer) StartScriptSpan(ctx context.Context, script, session string) (context.Context, trace.Span) {
	return t.Start(ctx, "script.run", AttrScript.String(script), AttrSession.String(session))
}

// Backend wraps next so every emission is a span.
func (t *Tracer) Backend(next command.Backend) *TracingBackend {
	return &TracingBackend{tracer: t, next: next}
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// ForceFlush forces all pending spans to be exported immediately.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.ForceFlush(ctx)
}

// TracingBackend is a command.Backend recording one span per invocation.
type TracingBackend struct {
	tracer *Tracer
	next   command.Backend
}

// Name reports the wrapped backend's name.
func (b *TracingBackend) Name() string {
	return command.BackendName(b.next)
}

// Emit implements command.Backend.
func (b *TracingBackend) Emit(ctx context.Context, inv command.Invocation) (command.Status, error) {
	name := inv.Command
	if inv.OpType != "" {
		name += " " + inv.OpType
	}
	ctx, span := b.tracer.Start(ctx, name,
		AttrSession.String(inv.Session),
		AttrBackend.String(command.BackendName(b.next)),
		AttrCommand.String(inv.Command),
		AttrOpType.String(inv.OpType),
		AttrCategory.String(inv.Category.String()),
		AttrTag.Int(inv.Tag),
		AttrSeq.Int(inv.Seq),
	)
	defer span.End()

	status, err := b.next.Emit(ctx, inv)
	span.SetAttributes(AttrCode.Int(status.Code))
	if err != nil {
		span.SetAttributes(AttrErrKind.String(string(command.KindOf(err))))
		RecordError(span, err)
		return status, err
	}
	if !status.OK() {
		span.SetStatus(codes.Error, fmt.Sprintf("engine returned %d", status.Code))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return status, nil
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the trace ID of the current span in the context.
func TraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}
