// Package telemetry wires the observability sinks of the governance
// controller: a Prometheus registry behind the domain.MetricsRecorder
// capability, OpenTelemetry metric instruments mirroring enforcement
// behaviour, and the OTLP trace provider bootstrap.
package telemetry
