// Package telemetry instruments o3 sessions.
//
// It brings together structured logging (zerolog), tracing (OpenTelemetry),
// Prometheus metrics and an in-process event stream. Sessions feed the last
// two through command.Observer; tracing wraps the session's backend.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.Metrics.Serve(ctx, tel.Logger.Zerolog()); err != nil {
//	    return err
//	}
//
//	s, err := command.Open(ctx, cfg, tel.Backend(backend), tel.SessionOptions()...)
//
// # Metrics
//
// Metrics live in their own registry, served at Config.Metrics.Path:
//
//   - o3_commands_emitted_total{command,backend,status}
//   - o3_emit_duration_seconds{command,backend}
//   - o3_errors_total{kind}
//   - o3_engine_nonzero_codes_total{command}
//   - o3_sessions_started_total{backend}
//   - o3_active_sessions
//
// # Tracing
//
// Every emission is a span named after the command and op type, e.g.
// "uniaxialMaterial Elastic", carrying the session, tag and sequence number.
// Exporters are otlp (gRPC), stdout and none.
//
// # Events
//
// The event publisher converts session events to Event values and hands
// them to subscribers on one goroutine, in order:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Line)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// A full buffer drops events rather than stalling the session.
package telemetry
