package domain

import "context"

// Store names used in StoreError and logs.
const (
	StoreIdentity  = "identity"
	StoreMetadata  = "metadata"
	StoreTelemetry = "telemetry"
)

// IdentityStore owns sensor identity records.
//
// Lookups return (nil, nil) when the record does not exist.
type IdentityStore interface {
	// Create generates the id and returns ErrDuplicateName when the name is taken.
	Create(ctx context.Context, name string) (*SensorIdentity, error)
	FindByID(ctx context.Context, id int64) (*SensorIdentity, error)
	FindByName(ctx context.Context, name string) (*SensorIdentity, error)
	// Delete returns ErrNotFound when no row was removed.
	Delete(ctx context.Context, id int64) error
	// List returns identities ordered by id.
	List(ctx context.Context, offset, limit int) ([]SensorIdentity, error)
}

// MetadataStore owns sensor metadata documents.
type MetadataStore interface {
	Insert(ctx context.Context, metadata *SensorMetadata) error
	FindByID(ctx context.Context, id int64) (*SensorMetadata, error)
	// FindNear returns documents within radiusKm in store order (nearest first).
	FindNear(ctx context.Context, latitude, longitude, radiusKm float64) ([]SensorMetadata, error)
	// Delete is a no-op when the document does not exist.
	Delete(ctx context.Context, id int64) error
	ListIDs(ctx context.Context) ([]int64, error)
}

// TelemetryCache holds the encoded latest sample per sensor.
type TelemetryCache interface {
	Set(ctx context.Context, id int64, payload []byte) error
	// Get reports ok=false on a miss.
	Get(ctx context.Context, id int64) (payload []byte, ok bool, err error)
	// Delete is a no-op when the key does not exist.
	Delete(ctx context.Context, id int64) error
	ListIDs(ctx context.Context) ([]int64, error)
}
