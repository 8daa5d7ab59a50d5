package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTransport is the base transport used by the instrumented client.
var DefaultTransport = http.DefaultTransport

type contextKey string

const serviceKey contextKey = "httpclient.service"

// WithService names the remote service a request goes to, for span names and attributes.
func WithService(ctx context.Context, service string) context.Context {
	return context.WithValue(ctx, serviceKey, service)
}

// ServiceFromContext returns the name set by WithService.
func ServiceFromContext(ctx context.Context) string {
	service, _ := ctx.Value(serviceKey).(string)
	return service
}

// serviceTransport is a RoundTripper that adds the remote service name to the current span.
type serviceTransport struct {
	base http.RoundTripper
}

func (t *serviceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	span := trace.SpanFromContext(req.Context())
	if service := ServiceFromContext(req.Context()); service != "" {
		span.SetAttributes(attribute.String("remote.service", service))
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP status %d", resp.StatusCode))
	}
	return resp, nil
}

func newOtelTransport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(&serviceTransport{base: base},
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			if service := ServiceFromContext(r.Context()); service != "" {
				return fmt.Sprintf("%s: %s %s", service, r.Method, r.URL.Path)
			}
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
	)
}

// NewInstrumentedClient returns a new http.Client with OpenTelemetry instrumentation and custom timeout.
// A zero timeout means no client-side limit; the request context still applies.
func NewInstrumentedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: newOtelTransport(DefaultTransport),
		Timeout:   timeout,
	}
}
