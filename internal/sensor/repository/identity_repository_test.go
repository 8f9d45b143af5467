package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sensorhub/internal/clock"
	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"github.com/smallbiznis/sensorhub/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityStore(t *testing.T) (domain.IdentityStore, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.SensorIdentity{}))
	t.Cleanup(func() {
		conn.Exec("DELETE FROM sensors")
	})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC))
	return NewIdentityStore(conn, node, clk), clk
}

func TestIdentityStoreCreateAndFind(t *testing.T) {
	store, clk := newIdentityStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "  boiler-room  ")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "boiler-room", created.Name)
	assert.True(t, created.JoinedAt.Equal(clk.Now()))

	byID, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, created.Name, byID.Name)
	assert.True(t, byID.JoinedAt.Equal(created.JoinedAt))

	byName, err := store.FindByName(ctx, "boiler-room")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, created.ID, byName.ID)
}

func TestIdentityStoreMissReturnsNil(t *testing.T) {
	store, _ := newIdentityStore(t)
	ctx := context.Background()

	byID, err := store.FindByID(ctx, 424242)
	assert.NoError(t, err)
	assert.Nil(t, byID)

	byName, err := store.FindByName(ctx, "ghost")
	assert.NoError(t, err)
	assert.Nil(t, byName)
}

func TestIdentityStoreDuplicateName(t *testing.T) {
	store, _ := newIdentityStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "rooftop")
	require.NoError(t, err)

	_, err = store.Create(ctx, "rooftop")
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
}

func TestIdentityStoreDelete(t *testing.T) {
	store, _ := newIdentityStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "cellar")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))
	assert.ErrorIs(t, store.Delete(ctx, created.ID), domain.ErrNotFound)

	found, err := store.FindByID(ctx, created.ID)
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestIdentityStoreListOrdersByID(t *testing.T) {
	store, clk := newIdentityStore(t)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"a", "b", "c", "d"} {
		created, err := store.Create(ctx, name)
		require.NoError(t, err)
		ids = append(ids, created.ID)
		clk.Advance(time.Second)
	}

	all, err := store.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, identity := range all {
		assert.Equal(t, ids[i], identity.ID)
	}

	page, err := store.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Name)
	assert.Equal(t, "c", page[1].Name)
}
