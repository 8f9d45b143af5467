package observability

import (
	"testing"

	"github.com/smallbiznis/sensorhub/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:      "",
		AppVersion:   "1.2.3",
		Environment:  "development",
		OTLPEndpoint: "collector:4317",
	})

	assert.Equal(t, "sensorhub", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.False(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigEnablesTracingInProduction(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	cfg := LoadConfig(config.Config{Environment: "production"})

	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "GRPC")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP/protobuf")
	t.Setenv("SERVICE_VERSION", "9.9.9")

	cfg := LoadConfig(config.Config{Environment: "staging", AppVersion: "1.0.0"})

	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.Equal(t, "http/protobuf", cfg.OtelExporterProtocol)
	assert.Equal(t, "9.9.9", cfg.Version)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigIgnoresOutOfRangeSampling(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "3")
	cfg := LoadConfig(config.Config{})
	assert.Equal(t, defaultSamplingRatio, cfg.OtelSamplingRatio)
}

func TestSplitConfigPropagatesDebug(t *testing.T) {
	out := splitConfig(Config{ServiceName: "sensorhub", Environment: "local", OtelSamplingRatio: 0.2})
	assert.True(t, out.Logger.Debug)
	assert.True(t, out.Logger.IncludeStackOnError)
	assert.Equal(t, 0.2, out.Tracing.SamplingRatio)
	assert.Equal(t, "sensorhub", out.Metrics.ServiceName)
}
