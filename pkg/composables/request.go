package composables

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/pkg/constants"
	"github.com/labx-platform/testbed/pkg/eventbus"
)

type Params struct {
	IP        string
	UserAgent string
	RequestID string
	Request   *http.Request
	Writer    http.ResponseWriter
}

// UseParams returns the request parameters from the context.
// If the parameters are not found, the second return value will be false.
func UseParams(ctx context.Context) (*Params, bool) {
	params, ok := ctx.Value(constants.ParamsKey).(*Params)
	return params, ok
}

// WithParams returns a new context with the request parameters.
func WithParams(ctx context.Context, params *Params) context.Context {
	return context.WithValue(ctx, constants.ParamsKey, params)
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the request scoped logger, or the standard logger outside a request.
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, id)
}

func UseRequestID(ctx context.Context) string {
	id, _ := ctx.Value(constants.RequestIDKey).(string)
	return id
}

func WithBus(ctx context.Context, bus eventbus.EventBus) context.Context {
	return context.WithValue(ctx, constants.BusKey, bus)
}

func UseBus(ctx context.Context) (eventbus.EventBus, bool) {
	bus, ok := ctx.Value(constants.BusKey).(eventbus.EventBus)
	return bus, ok
}

// UseQuery decodes the request query string into v.
func UseQuery[T any](v *T, r *http.Request) (*T, error) {
	return v, constants.Decoder.Decode(v, r.URL.Query())
}

// GetLastQueryParam returns the last occurrence of a query parameter.
func GetLastQueryParam(r *http.Request, key string) string {
	values := r.URL.Query()[key]
	if len(values) > 0 {
		return values[len(values)-1]
	}
	return ""
}
