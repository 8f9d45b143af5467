package context

import "context"

type requestIDKey struct{}

type sensorIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithSensorID tags the context with the sensor addressed by the request.
func WithSensorID(ctx context.Context, sensorID string) context.Context {
	if sensorID == "" {
		return ctx
	}
	return context.WithValue(ctx, sensorIDKey{}, sensorID)
}

func SensorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(sensorIDKey{}).(string)
	return value
}
