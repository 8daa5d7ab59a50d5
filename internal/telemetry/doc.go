// Package telemetry provides OpenTelemetry initialization and helpers
// for distributed tracing across recgen.
//
// Traces, metrics and logs are exported over OTLP/HTTP. The endpoint may carry a base
// path, which is kept in front of the signal paths.
package telemetry
