package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/sensorhub/internal/config"
)

// Config is the observability slice of the application config. Values
// come from config.Config and may be overridden by the standard OTEL_*
// and LOG_* variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

const defaultSamplingRatio = 0.1

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:          orDefault(cfg.AppName, "sensorhub"),
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             "info",
		LogFormat:            "json",
		OtelEnabled:          cfg.IsProduction(),
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: "grpc",
		OtelSamplingRatio:    defaultSamplingRatio,
	}

	overrideString(&out.Environment, "DEPLOYMENT_ENV", false)
	overrideString(&out.Version, "SERVICE_VERSION", false)
	overrideString(&out.LogLevel, "LOG_LEVEL", true)
	overrideString(&out.LogFormat, "LOG_FORMAT", true)
	overrideString(&out.OtelExporterEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT", false)
	overrideString(&out.OtelExporterProtocol, "OTEL_EXPORTER_OTLP_PROTOCOL", true)
	overrideString(&out.OtelExporterProtocol, "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", true)

	if v, ok := lookup("OTEL_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			out.OtelEnabled = b
		}
	}
	if v, ok := lookup("OTEL_SAMPLING_RATIO"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			out.OtelSamplingRatio = f
		}
	}

	return out
}

// Debug is true for debug logging or any non-deployed environment.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func overrideString(dst *string, key string, fold bool) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if fold {
		v = strings.ToLower(v)
	}
	*dst = v
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
