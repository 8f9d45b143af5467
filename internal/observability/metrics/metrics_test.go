package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outcome", "success"),
		attribute.Int64("sensor_id", 456),
		attribute.String("scope", "sensor"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("outcome"), attrs[0].Key)
	assert.Equal(t, attribute.Key("scope"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordRegistration(ctx, OutcomeSuccess)
		m.RecordCompensation(ctx, OutcomeFailed)
		m.RecordTelemetryReport(ctx, OutcomeRejected)
		m.RecordCorruptTelemetry(ctx, "fetch")
		m.RecordStaleMetadata(ctx)
		m.RecordRateLimitAllowed(ctx, "sensor", "/sensors/:id/data")
		m.RecordRateLimitDenied(ctx, "sensor", "/sensors/:id/data", "exhausted")
	})
}

func TestRecordRegistrationExportsCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "sensorhub-test"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRegistration(ctx, OutcomeSuccess)
	m.RecordRegistration(ctx, OutcomeSuccess)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != "sensorhub_registrations_total" {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, point := range sum.DataPoints {
				total += point.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)
}
