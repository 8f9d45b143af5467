package migration

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"github.com/smallbiznis/sensorhub/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsPaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	assert.True(t, names["000001_create_sensors.up.sql"])
	assert.True(t, names["000001_create_sensors.down.sql"])
}

func TestApplyAutoMigratesSQLite(t *testing.T) {
	conn, err := db.NewTest("migration_apply")
	require.NoError(t, err)

	require.NoError(t, Apply(conn, "sqlite"))
	require.NoError(t, Apply(conn, "sqlite"), "apply is repeatable")

	row := domain.SensorIdentity{ID: 1, Name: "a", JoinedAt: time.Now().UTC()}
	require.NoError(t, conn.WithContext(context.Background()).Create(&row).Error)

	dup := domain.SensorIdentity{ID: 2, Name: "a", JoinedAt: time.Now().UTC()}
	err = conn.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))
}

func TestApplyRequiresConnection(t *testing.T) {
	assert.Error(t, Apply(nil, "sqlite"))
	assert.Error(t, RunMigrations(nil))
}
