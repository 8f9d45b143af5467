package service

import (
	"context"

	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"github.com/stretchr/testify/mock"
)

type mockIdentityStore struct{ mock.Mock }

func (m *mockIdentityStore) Create(ctx context.Context, name string) (*domain.SensorIdentity, error) {
	args := m.Called(ctx, name)
	identity, _ := args.Get(0).(*domain.SensorIdentity)
	return identity, args.Error(1)
}

func (m *mockIdentityStore) FindByID(ctx context.Context, id int64) (*domain.SensorIdentity, error) {
	args := m.Called(ctx, id)
	identity, _ := args.Get(0).(*domain.SensorIdentity)
	return identity, args.Error(1)
}

func (m *mockIdentityStore) FindByName(ctx context.Context, name string) (*domain.SensorIdentity, error) {
	args := m.Called(ctx, name)
	identity, _ := args.Get(0).(*domain.SensorIdentity)
	return identity, args.Error(1)
}

func (m *mockIdentityStore) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockIdentityStore) List(ctx context.Context, offset, limit int) ([]domain.SensorIdentity, error) {
	args := m.Called(ctx, offset, limit)
	rows, _ := args.Get(0).([]domain.SensorIdentity)
	return rows, args.Error(1)
}

type mockMetadataStore struct{ mock.Mock }

func (m *mockMetadataStore) Insert(ctx context.Context, metadata *domain.SensorMetadata) error {
	return m.Called(ctx, metadata).Error(0)
}

func (m *mockMetadataStore) FindByID(ctx context.Context, id int64) (*domain.SensorMetadata, error) {
	args := m.Called(ctx, id)
	metadata, _ := args.Get(0).(*domain.SensorMetadata)
	return metadata, args.Error(1)
}

func (m *mockMetadataStore) FindNear(ctx context.Context, latitude, longitude, radiusKm float64) ([]domain.SensorMetadata, error) {
	args := m.Called(ctx, latitude, longitude, radiusKm)
	docs, _ := args.Get(0).([]domain.SensorMetadata)
	return docs, args.Error(1)
}

func (m *mockMetadataStore) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockMetadataStore) ListIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

type mockTelemetryCache struct{ mock.Mock }

func (m *mockTelemetryCache) Set(ctx context.Context, id int64, payload []byte) error {
	return m.Called(ctx, id, payload).Error(0)
}

func (m *mockTelemetryCache) Get(ctx context.Context, id int64) ([]byte, bool, error) {
	args := m.Called(ctx, id)
	payload, _ := args.Get(0).([]byte)
	return payload, args.Bool(1), args.Error(2)
}

func (m *mockTelemetryCache) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTelemetryCache) ListIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}
