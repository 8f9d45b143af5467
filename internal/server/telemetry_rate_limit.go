package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/sensorhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sensorhub/internal/observability/metrics"
	"github.com/smallbiznis/sensorhub/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitScopeSensor   = "sensor"
	rateLimitScopeEndpoint = "endpoint"

	rateLimitReasonSensorRate   = "sensor-rate"
	rateLimitReasonEndpointRate = "endpoint-rate"
)

// TelemetryIngestRateLimit checks the client endpoint bucket and then the
// per-sensor bucket. Limiter failures surface as 503.
func (s *Server) TelemetryIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.telemetryLimiter.Enabled() {
			c.Next()
			return
		}

		id, err := parseSensorID(c.Param("id"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		res, err := s.telemetryLimiter.AllowEndpoint(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("telemetry endpoint rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			denyTelemetryIngest(c, endpoint, rateLimitScopeEndpoint, rateLimitReasonEndpointRate, res, s.obsMetrics)
			return
		}

		res, err = s.telemetryLimiter.AllowSensor(ctx, id)
		if err != nil {
			logger.FromContext(ctx).Warn("telemetry sensor rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			denyTelemetryIngest(c, endpoint, rateLimitScopeSensor, rateLimitReasonSensorRate, res, s.obsMetrics)
			return
		}

		setRateLimitHeaders(c, res)
		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyTelemetryIngest(c *gin.Context, endpoint, scope, reason string, res *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("telemetry ingest rate limit exceeded",
		zap.String("scope", scope),
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	metrics.RecordRateLimitDenied(ctx, scope, endpoint, reason)

	setRateLimitHeaders(c, res)
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(res)))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	metrics.RecordRateLimitAllowed(ctx, rateLimitScopeSensor, endpoint)
}

func setRateLimitHeaders(c *gin.Context, res *ratelimit.RateLimitResult) {
	if res == nil || res.Limit <= 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
}

func retryAfterSeconds(res *ratelimit.RateLimitResult) int {
	if res == nil || res.RetryAfter <= 0 {
		return 1
	}
	return int(math.Ceil(res.RetryAfter.Seconds()))
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
