package reaper

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("reaper",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(StartReaper),
)

func StartReaper(lc fx.Lifecycle, cfg Config, r *Reaper, log *zap.Logger) {
	if !cfg.Enabled {
		log.Info("orphan reaper disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go r.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
