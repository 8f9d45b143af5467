package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestEmptyValuesAreNotStored(t *testing.T) {
	ctx := WithSensorID(WithRequestID(context.Background(), ""), "")
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, SensorIDFromContext(ctx))
}

func TestSensorIDRoundTrip(t *testing.T) {
	ctx := WithSensorID(context.Background(), "42")
	assert.Equal(t, "42", SensorIDFromContext(ctx))
}
