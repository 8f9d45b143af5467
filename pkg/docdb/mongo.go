package docdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/sensorhub/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("docdb",
	fx.Provide(
		New,
		NewCollection,
	),
)

// New connects the metadata document store client.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*mongo.Client, error) {
	uri := strings.TrimSpace(cfg.Mongo.URI)
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}

	opts := options.Client().
		ApplyURI(uri).
		SetAppName(cfg.AppName)
	if cfg.Mongo.Timeout > 0 {
		opts.SetTimeout(cfg.Mongo.Timeout)
		opts.SetConnectTimeout(cfg.Mongo.Timeout)
	}

	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx, readpref.Primary()); err != nil {
					return fmt.Errorf("ping mongo: %w", err)
				}
				log.Info("mongo connected", zap.String("database", cfg.Mongo.Database))
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return client.Disconnect(ctx)
			},
		})
	}

	return client, nil
}

func NewCollection(client *mongo.Client, cfg config.Config) *mongo.Collection {
	return client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
}
