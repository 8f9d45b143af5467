package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const metresPerKm = 1000.0

type metadataRepo struct {
	coll *mongo.Collection
}

func NewMetadataStore(coll *mongo.Collection) domain.MetadataStore {
	return &metadataRepo{coll: coll}
}

// EnsureMetadataIndexes creates the geo index used by FindNear and the
// unique id index used by point lookups.
func EnsureMetadataIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
			Options: options.Index().SetName("ix_sensors_location"),
		},
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("ux_sensors_id").SetUnique(true),
		},
	})
	return err
}

func (r *metadataRepo) Insert(ctx context.Context, metadata *domain.SensorMetadata) error {
	if metadata == nil {
		return errors.New("metadata is required")
	}
	doc := *metadata
	doc.Location = domain.NewGeoPoint(doc.Latitude, doc.Longitude)
	_, err := r.coll.InsertOne(ctx, doc)
	return err
}

func (r *metadataRepo) FindByID(ctx context.Context, id int64) (*domain.SensorMetadata, error) {
	var metadata domain.SensorMetadata
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&metadata)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &metadata, nil
}

func (r *metadataRepo) FindNear(ctx context.Context, latitude, longitude, radiusKm float64) ([]domain.SensorMetadata, error) {
	filter := bson.M{
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry":    domain.NewGeoPoint(latitude, longitude),
				"$maxDistance": radiusKm * metresPerKm,
			},
		},
	}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var documents []domain.SensorMetadata
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, err
	}
	return documents, nil
}

func (r *metadataRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	return err
}

func (r *metadataRepo) ListIDs(ctx context.Context) ([]int64, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 0, "id": 1}).
		SetSort(bson.D{{Key: "id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID int64 `bson:"id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
