package migration

import (
	"github.com/smallbiznis/sensorhub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Apply(conn, cfg.DBType); err != nil {
			log.Error("failed to apply migrations", zap.String("db_type", cfg.DBType), zap.Error(err))
			return err
		}
		log.Info("identity schema ready", zap.String("db_type", cfg.DBType))
		return nil
	}),
)
