package main

import (
	"github.com/smallbiznis/sensorhub/internal/clock"
	"github.com/smallbiznis/sensorhub/internal/config"
	"github.com/smallbiznis/sensorhub/internal/migration"
	"github.com/smallbiznis/sensorhub/internal/observability"
	"github.com/smallbiznis/sensorhub/internal/ratelimit"
	"github.com/smallbiznis/sensorhub/internal/sensor"
	"github.com/smallbiznis/sensorhub/internal/server"
	"github.com/smallbiznis/sensorhub/pkg/db"
	"github.com/smallbiznis/sensorhub/pkg/docdb"
	"github.com/smallbiznis/sensorhub/pkg/kvstore"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		db.Module,
		docdb.Module,
		kvstore.Module,
		migration.Module,

		sensor.Module,
		ratelimit.Module, // telemetry ingest throttling

		server.Module,
	)
	app.Run()
}
