package telemetry

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	sootel "github.com/sotags/sotags-api/internal/otel"
)

const (
	// TracerName is the name used for the HTTP tracer
	TracerName = "github.com/sotags/sotags-api/http"

	// MaxUserAgentLength caps the user agent recorded on spans
	MaxUserAgentLength = 256

	maxQueryValueLength = 64
)

// untracedPaths are polled constantly by orchestrators and would only add noise to traces
var untracedPaths = map[string]struct{}{
	"/health":    {},
	"/readiness": {},
	"/metrics":   {},
}

// listingParams maps the listing query parameters to span attributes.
// Values are recorded as sent, before validation.
var listingParams = []struct {
	param string
	key   attribute.Key
}{
	{"sortBy", sootel.AttrSortBy},
	{"direction", sootel.AttrDirection},
	{"page", sootel.AttrPage},
	{"pageSize", sootel.AttrPageSize},
}

// TracingMiddleware starts a server span per request, continuing any W3C
// trace context the caller sent. A nil provider disables tracing.
func TracingMiddleware(provider trace.TracerProvider) func(http.Handler) http.Handler {
	if provider == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	tracer := provider.Tracer(TracerName)
	propagator := otel.GetTextMapPropagator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := untracedPaths[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.UserAgentOriginal(truncateUserAgent(r.UserAgent())),
				),
			)
			defer span.End()

			if r.Method == http.MethodGet {
				span.SetAttributes(listingAttributes(r)...)
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// chi fills in the pattern while routing
			route := getRoutePattern(r)
			code := ww.Status()
			span.SetName(r.Method + " " + route)
			span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPResponseStatusCode(code))

			// client errors such as a bad sortBy leave the status unset
			switch {
			case code >= http.StatusInternalServerError:
				span.SetStatus(codes.Error, http.StatusText(code))
			case code < http.StatusBadRequest:
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// listingAttributes returns the listing parameters present on the request
func listingAttributes(r *http.Request) []attribute.KeyValue {
	query := r.URL.Query()
	var attrs []attribute.KeyValue
	for _, p := range listingParams {
		if !query.Has(p.param) {
			continue
		}
		v := query.Get(p.param)
		if len(v) > maxQueryValueLength {
			v = v[:maxQueryValueLength]
		}
		attrs = append(attrs, p.key.String(v))
	}
	return attrs
}

func truncateUserAgent(ua string) string {
	if len(ua) <= MaxUserAgentLength {
		return ua
	}
	return ua[:MaxUserAgentLength]
}
