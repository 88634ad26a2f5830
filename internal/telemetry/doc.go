// Package telemetry wires OpenTelemetry tracing and metrics for devforge.
//
// Telemetry is off by default. When enabled, spans and metrics are exported
// over OTLP (gRPC or HTTP/protobuf) and the global otel providers are
// replaced, so packages that call otel.Tracer or otel.Meter pick them up.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Provider failures degrade telemetry instead of failing startup.
package telemetry
