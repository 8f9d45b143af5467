package repository

import (
	"context"
	"testing"

	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func metadataDoc(id int64, lat, lon float64, kind string) bson.D {
	return bson.D{
		{Key: "id", Value: id},
		{Key: "latitude", Value: lat},
		{Key: "longitude", Value: lon},
		{Key: "location", Value: bson.D{
			{Key: "type", Value: "Point"},
			{Key: "coordinates", Value: bson.A{lon, lat}},
		}},
		{Key: "type", Value: kind},
		{Key: "mac_address", Value: "00:11:22:33:44:55"},
	}
}

func TestMetadataStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		store := NewMetadataStore(mt.Coll)

		err := store.Insert(context.Background(), &domain.SensorMetadata{ID: 1, Latitude: 41.38, Longitude: 2.17})
		assert.NoError(mt, err)
	})

	mt.Run("insert duplicate id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		store := NewMetadataStore(mt.Coll)

		err := store.Insert(context.Background(), &domain.SensorMetadata{ID: 1})
		require.Error(mt, err)
		assert.True(mt, mongo.IsDuplicateKeyError(err))
	})

	mt.Run("find by id", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, metadataDoc(9, 41.38, 2.17, "temperature")))
		store := NewMetadataStore(mt.Coll)

		got, err := store.FindByID(context.Background(), 9)
		require.NoError(mt, err)
		require.NotNil(mt, got)
		assert.Equal(mt, int64(9), got.ID)
		assert.Equal(mt, 41.38, got.Latitude)
		assert.Equal(mt, 2.17, got.Longitude)
		assert.Equal(mt, "temperature", got.Type)
		assert.Equal(mt, []float64{2.17, 41.38}, got.Location.Coordinates)
	})

	mt.Run("find by id miss", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		store := NewMetadataStore(mt.Coll)

		got, err := store.FindByID(context.Background(), 9)
		assert.NoError(mt, err)
		assert.Nil(mt, got)
	})

	mt.Run("find near keeps store order", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			metadataDoc(3, 41.39, 2.17, "humidity"),
			metadataDoc(1, 41.40, 2.18, "temperature"),
		))
		store := NewMetadataStore(mt.Coll)

		got, err := store.FindNear(context.Background(), 41.39, 2.17, 5)
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, int64(3), got[0].ID)
		assert.Equal(mt, int64(1), got[1].ID)
	})

	mt.Run("find near command error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    291,
			Name:    "NoQueryExecutionPlans",
			Message: "unable to find index for $geoNear query",
		}))
		store := NewMetadataStore(mt.Coll)

		_, err := store.FindNear(context.Background(), 0, 0, 1)
		assert.Error(mt, err)
	})

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		store := NewMetadataStore(mt.Coll)

		assert.NoError(mt, store.Delete(context.Background(), 77))
	})

	mt.Run("list ids", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "id", Value: int64(4)}},
			bson.D{{Key: "id", Value: int64(8)}},
		))
		store := NewMetadataStore(mt.Coll)

		ids, err := store.ListIDs(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, []int64{4, 8}, ids)
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		assert.NoError(mt, EnsureMetadataIndexes(context.Background(), mt.Coll))
	})
}
