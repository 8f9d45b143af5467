package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/sensorhub/internal/config"
	"github.com/smallbiznis/sensorhub/internal/observability"
	obsmiddleware "github.com/smallbiznis/sensorhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sensorhub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/sensorhub/internal/observability/tracing"
	"github.com/smallbiznis/sensorhub/internal/ratelimit"
	sensordomain "github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine           *gin.Engine
	cfg              config.Config
	sensorSvc        sensordomain.Service
	telemetryLimiter *ratelimit.TelemetryIngestLimiter
	obsMetrics       *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	SensorSvc        sensordomain.Service
	TelemetryLimiter *ratelimit.TelemetryIngestLimiter `optional:"true"`
	ObsMetrics       *obsmetrics.Metrics               `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		sensorSvc:        p.SensorSvc,
		telemetryLimiter: p.TelemetryLimiter,
		obsMetrics:       p.ObsMetrics,
	}

	svc.registerSensorRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerSensorRoutes() {
	sensors := s.engine.Group("/sensors")

	sensors.POST("", s.RegisterSensor)
	sensors.GET("", s.ListSensors)
	sensors.GET("/near", s.ListSensorsNear)
	sensors.GET("/by-name/:name", s.GetSensorByName)

	sensors.GET("/:id", s.GetSensor)
	sensors.DELETE("/:id", s.DeleteSensor)
	sensors.GET("/:id/data", s.GetSensor)
	sensors.POST("/:id/data", s.TelemetryIngestRateLimit(), s.RecordTelemetry)
}
