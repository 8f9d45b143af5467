// Package memstore holds in-process implementations of the three sensor
// stores. They back local development and the engine, reaper and HTTP tests.
package memstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/sensorhub/internal/clock"
	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
)

const earthRadiusKm = 6371.0088

type IdentityStore struct {
	mu     sync.RWMutex
	clock  clock.Clock
	nextID int64
	rows   map[int64]domain.SensorIdentity
}

func NewIdentityStore(clk clock.Clock) *IdentityStore {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &IdentityStore{clock: clk, rows: map[int64]domain.SensorIdentity{}}
}

func (s *IdentityStore) Create(_ context.Context, name string) (*domain.SensorIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	for _, row := range s.rows {
		if row.Name == name {
			return nil, domain.ErrDuplicateName
		}
	}
	s.nextID++
	row := domain.SensorIdentity{
		ID:       s.nextID,
		Name:     name,
		JoinedAt: s.clock.Now().UTC().Truncate(time.Microsecond),
	}
	s.rows[row.ID] = row
	return &row, nil
}

func (s *IdentityStore) FindByID(_ context.Context, id int64) (*domain.SensorIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *IdentityStore) FindByName(_ context.Context, name string) (*domain.SensorIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name = strings.TrimSpace(name)
	for _, row := range s.rows {
		if row.Name == name {
			return &row, nil
		}
	}
	return nil, nil
}

func (s *IdentityStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *IdentityStore) List(_ context.Context, offset, limit int) ([]domain.SensorIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.SensorIdentity, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	if offset >= len(rows) {
		return []domain.SensorIdentity{}, nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

type MetadataStore struct {
	mu   sync.RWMutex
	docs map[int64]domain.SensorMetadata
}

func NewMetadataStore() *MetadataStore {
	return &MetadataStore{docs: map[int64]domain.SensorMetadata{}}
}

func (s *MetadataStore) Insert(_ context.Context, metadata *domain.SensorMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := *metadata
	doc.Location = domain.NewGeoPoint(doc.Latitude, doc.Longitude)
	s.docs[doc.ID] = doc
	return nil
}

func (s *MetadataStore) FindByID(_ context.Context, id int64) (*domain.SensorMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// FindNear returns documents within radiusKm ordered nearest first, ties by id.
func (s *MetadataStore) FindNear(_ context.Context, latitude, longitude, radiusKm float64) ([]domain.SensorMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		doc      domain.SensorMetadata
		distance float64
	}
	var hits []hit
	for _, doc := range s.docs {
		d := HaversineKm(latitude, longitude, doc.Latitude, doc.Longitude)
		if d <= radiusKm {
			hits = append(hits, hit{doc: doc, distance: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].distance == hits[j].distance {
			return hits[i].doc.ID < hits[j].doc.ID
		}
		return hits[i].distance < hits[j].distance
	})

	docs := make([]domain.SensorMetadata, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, h.doc)
	}
	return docs, nil
}

func (s *MetadataStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *MetadataStore) ListIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.docs), nil
}

type TelemetryCache struct {
	mu      sync.RWMutex
	entries map[int64][]byte
}

func NewTelemetryCache() *TelemetryCache {
	return &TelemetryCache{entries: map[int64][]byte{}}
}

func (c *TelemetryCache) Set(_ context.Context, id int64, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = append([]byte(nil), payload...)
	return nil
}

func (c *TelemetryCache) Get(_ context.Context, id int64) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	payload, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), payload...), true, nil
}

func (c *TelemetryCache) Delete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func (c *TelemetryCache) ListIDs(_ context.Context) ([]int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.entries), nil
}

// HaversineKm is the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

func sortedKeys[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

var (
	_ domain.IdentityStore  = (*IdentityStore)(nil)
	_ domain.MetadataStore  = (*MetadataStore)(nil)
	_ domain.TelemetryCache = (*TelemetryCache)(nil)
)
