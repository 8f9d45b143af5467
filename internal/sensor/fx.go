package sensor

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sensorhub/internal/config"
	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"github.com/smallbiznis/sensorhub/internal/sensor/repository"
	"github.com/smallbiznis/sensorhub/internal/sensor/service"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("sensor.service",
	fx.Provide(
		NewSnowflakeNode,
		repository.NewIdentityStore,
		repository.NewMetadataStore,
		newTelemetryCache,
		service.New,
	),
	fx.Invoke(registerMetadataIndexes),
)

func NewSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func newTelemetryCache(client *redis.Client, cfg config.Config) domain.TelemetryCache {
	return repository.NewTelemetryCache(client, cfg.Redis.KeyPrefix)
}

func registerMetadataIndexes(lc fx.Lifecycle, coll *mongo.Collection, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := repository.EnsureMetadataIndexes(ctx, coll); err != nil {
				log.Error("failed to ensure sensor metadata indexes", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
