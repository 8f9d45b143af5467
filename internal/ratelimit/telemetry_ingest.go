package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sensorhub/internal/config"
)

const (
	keyTelemetrySensor   = "ratelimit:telemetry:sensor:%d"
	keyTelemetryEndpoint = "ratelimit:telemetry:endpoint:%s"
)

// TelemetryIngestLimiter throttles telemetry reports per sensor and per
// client endpoint. A nil limiter allows everything.
type TelemetryIngestLimiter struct {
	enabled bool
	bucket  *TokenBucket

	sensor   Limit
	endpoint Limit
}

func NewTelemetryIngestLimiter(cfg config.Config, client *redis.Client) (*TelemetryIngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit redis client is required")
	}
	sensor := Limit{Rate: limitCfg.SensorRate, Burst: limitCfg.SensorBurst}
	if err := sensor.validate(); err != nil {
		return nil, fmt.Errorf("telemetry sensor limit: %w", err)
	}
	endpoint := Limit{Rate: limitCfg.EndpointRate, Burst: limitCfg.EndpointBurst}
	if err := endpoint.validate(); err != nil {
		return nil, fmt.Errorf("telemetry endpoint limit: %w", err)
	}

	return &TelemetryIngestLimiter{
		enabled:  true,
		bucket:   NewTokenBucket(client),
		sensor:   sensor,
		endpoint: endpoint,
	}, nil
}

func (l *TelemetryIngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *TelemetryIngestLimiter) AllowSensor(ctx context.Context, sensorID int64) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyTelemetrySensor, sensorID), l.sensor)
}

func (l *TelemetryIngestLimiter) AllowEndpoint(ctx context.Context, endpoint string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = "unknown"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyTelemetryEndpoint, endpoint), l.endpoint)
}
