package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/smallbiznis/sensorhub/internal/config"
	"github.com/smallbiznis/sensorhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sensorhub/internal/observability/metrics"
	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"github.com/smallbiznis/sensorhub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// nearLookupConcurrency bounds the per-document identity/telemetry joins of Near.
const nearLookupConcurrency = 8

type Params struct {
	fx.In

	Log        *zap.Logger
	Identities domain.IdentityStore
	Metadata   domain.MetadataStore
	Telemetry  domain.TelemetryCache
	Engine     *config.EngineConfigHolder `optional:"true"`
	Metrics    *obsmetrics.Metrics        `optional:"true"`
}

// Service merges the identity, metadata and telemetry fragments of a sensor.
// It keeps no state between calls and never retries a store call.
type Service struct {
	log        *zap.Logger
	identities domain.IdentityStore
	metadata   domain.MetadataStore
	telemetry  domain.TelemetryCache
	engine     *config.EngineConfigHolder
	metrics    *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("sensor.service"),
		identities: p.Identities,
		metadata:   p.Metadata,
		telemetry:  p.Telemetry,
		engine:     p.Engine,
		metrics:    p.Metrics,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.SensorIdentity, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}

	existing, err := s.identities.FindByName(ctx, name)
	if err != nil {
		s.metrics.RecordRegistration(ctx, obsmetrics.OutcomeFailed)
		return nil, domain.NewStoreError(domain.StoreIdentity, "find_by_name", err)
	}
	if existing != nil {
		s.metrics.RecordRegistration(ctx, obsmetrics.OutcomeRejected)
		return nil, domain.ErrDuplicateName
	}

	identity, err := s.identities.Create(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateName) {
			s.metrics.RecordRegistration(ctx, obsmetrics.OutcomeRejected)
			return nil, domain.ErrDuplicateName
		}
		s.metrics.RecordRegistration(ctx, obsmetrics.OutcomeFailed)
		return nil, domain.NewStoreError(domain.StoreIdentity, "create", err)
	}

	metadata := &domain.SensorMetadata{
		ID:              identity.ID,
		Longitude:       req.Longitude,
		Latitude:        req.Latitude,
		Type:            strings.TrimSpace(req.Type),
		MacAddress:      strings.TrimSpace(req.MacAddress),
		Manufacturer:    strings.TrimSpace(req.Manufacturer),
		Model:           strings.TrimSpace(req.Model),
		SerialNumber:    strings.TrimSpace(req.SerialNumber),
		FirmwareVersion: strings.TrimSpace(req.FirmwareVersion),
	}
	if err := s.metadata.Insert(ctx, metadata); err != nil {
		s.metrics.RecordRegistration(ctx, obsmetrics.OutcomeFailed)
		return nil, s.compensateRegistration(ctx, identity, err)
	}

	s.metrics.RecordRegistration(ctx, obsmetrics.OutcomeSuccess)
	logger.WithSensor(s.logger(ctx), identity.ID).Info("sensor registered", zap.String("name", identity.Name))
	return identity, nil
}

// compensateRegistration removes an identity whose metadata insert failed so
// that no identity-only sensor survives registration. The delete runs even if
// the request context is already cancelled.
func (s *Service) compensateRegistration(ctx context.Context, identity *domain.SensorIdentity, insertErr error) error {
	log := logger.WithSensor(s.logger(ctx), identity.ID)
	storeErr := domain.NewStoreError(domain.StoreMetadata, "insert", insertErr)

	delErr := s.identities.Delete(context.WithoutCancel(ctx), identity.ID)
	if delErr != nil && !errors.Is(delErr, domain.ErrNotFound) {
		s.metrics.RecordCompensation(ctx, obsmetrics.OutcomeFailed)
		log.Error("registration compensation failed, identity left for reaper",
			zap.Error(insertErr),
			zap.NamedError("compensation_error", delErr),
		)
		return errors.Join(storeErr, domain.NewStoreError(domain.StoreIdentity, "compensate", delErr))
	}

	s.metrics.RecordCompensation(ctx, obsmetrics.OutcomeSuccess)
	log.Warn("registration rolled back after metadata insert failure", zap.Error(insertErr))
	return storeErr
}

func (s *Service) RecordTelemetry(ctx context.Context, id int64, sample domain.TelemetrySample) (*domain.SensorView, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidID
	}
	if err := validateSample(sample); err != nil {
		return nil, err
	}

	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		s.metrics.RecordTelemetryReport(ctx, obsmetrics.OutcomeFailed)
		return nil, domain.NewStoreError(domain.StoreIdentity, "find_by_id", err)
	}
	if identity == nil {
		s.metrics.RecordTelemetryReport(ctx, obsmetrics.OutcomeRejected)
		return nil, domain.ErrSensorNotFound
	}

	payload, err := encodeTelemetry(sample)
	if err != nil {
		return nil, err
	}
	if err := s.telemetry.Set(ctx, id, payload); err != nil {
		s.metrics.RecordTelemetryReport(ctx, obsmetrics.OutcomeFailed)
		return nil, domain.NewStoreError(domain.StoreTelemetry, "set", err)
	}

	metadata, err := s.metadata.FindByID(ctx, id)
	if err != nil {
		s.metrics.RecordTelemetryReport(ctx, obsmetrics.OutcomeFailed)
		return nil, domain.NewStoreError(domain.StoreMetadata, "find_by_id", err)
	}
	if metadata == nil {
		s.metrics.RecordTelemetryReport(ctx, obsmetrics.OutcomeRejected)
		logger.WithSensor(s.logger(ctx), id).Warn("telemetry stored for sensor without metadata")
		return nil, domain.ErrSensorNotFound
	}

	s.metrics.RecordTelemetryReport(ctx, obsmetrics.OutcomeSuccess)
	view := buildView(identity, metadata, sample)
	return &view, nil
}

// Get reads the identity first since it is the authoritative existence
// check, then loads metadata and telemetry concurrently.
func (s *Service) Get(ctx context.Context, id int64) (*domain.SensorView, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidID
	}

	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreIdentity, "find_by_id", err)
	}
	if identity == nil {
		return nil, domain.ErrSensorNotFound
	}

	var (
		metadata *domain.SensorMetadata
		payload  []byte
		cached   bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.metadata.FindByID(gctx, id)
		if err != nil {
			return domain.NewStoreError(domain.StoreMetadata, "find_by_id", err)
		}
		metadata = found
		return nil
	})
	g.Go(func() error {
		raw, ok, err := s.telemetry.Get(gctx, id)
		if err != nil {
			return domain.NewStoreError(domain.StoreTelemetry, "get", err)
		}
		payload, cached = raw, ok
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if metadata == nil {
		return nil, domain.ErrSensorNotFound
	}

	var sample domain.TelemetrySample
	if cached {
		sample, err = decodeTelemetry(id, payload)
		if err != nil {
			s.metrics.RecordCorruptTelemetry(ctx, "get")
			logger.WithSensor(s.logger(ctx), id).Warn("corrupt telemetry payload", zap.Error(err))
			return nil, err
		}
	}

	view := buildView(identity, metadata, sample)
	return &view, nil
}

func (s *Service) Near(ctx context.Context, req domain.NearRequest) ([]domain.SensorView, error) {
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}
	if req.RadiusKm <= 0 || math.IsNaN(req.RadiusKm) || req.RadiusKm > s.engine.Get().MaxRadiusKm {
		return nil, domain.ErrInvalidRadius
	}

	documents, err := s.metadata.FindNear(ctx, req.Latitude, req.Longitude, req.RadiusKm)
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreMetadata, "find_near", err)
	}

	// Slots keep the metadata store's order; nil marks a skipped document.
	results := make([]*domain.SensorView, len(documents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nearLookupConcurrency)
	for i := range documents {
		metadata := &documents[i]
		g.Go(func() error {
			view, err := s.nearEntry(gctx, metadata)
			if err != nil {
				return err
			}
			results[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]domain.SensorView, 0, len(results))
	for _, view := range results {
		if view != nil {
			views = append(views, *view)
		}
	}
	return views, nil
}

// nearEntry joins one proximity hit back to its identity and telemetry.
// Stale metadata yields nil, and a missing or corrupt sample degrades to defaults.
func (s *Service) nearEntry(ctx context.Context, metadata *domain.SensorMetadata) (*domain.SensorView, error) {
	identity, err := s.identities.FindByID(ctx, metadata.ID)
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreIdentity, "find_by_id", err)
	}
	if identity == nil {
		s.metrics.RecordStaleMetadata(ctx)
		logger.WithSensor(s.logger(ctx), metadata.ID).Debug("skipping metadata without identity")
		return nil, nil
	}

	payload, ok, err := s.telemetry.Get(ctx, metadata.ID)
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreTelemetry, "get", err)
	}

	var sample domain.TelemetrySample
	if ok {
		decoded, err := decodeTelemetry(metadata.ID, payload)
		if err != nil {
			s.metrics.RecordCorruptTelemetry(ctx, "near")
			logger.WithSensor(s.logger(ctx), metadata.ID).Warn("corrupt telemetry payload, using defaults", zap.Error(err))
		} else {
			sample = decoded
		}
	}

	view := buildView(identity, metadata, sample)
	return &view, nil
}

// Delete removes the identity first, then the metadata and telemetry
// fragments. Both trailing deletes always run; missing fragments are no-ops.
func (s *Service) Delete(ctx context.Context, id int64) (*domain.SensorIdentity, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidID
	}

	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreIdentity, "find_by_id", err)
	}
	if identity == nil {
		return nil, domain.ErrSensorNotFound
	}

	if err := s.identities.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrSensorNotFound
		}
		return nil, domain.NewStoreError(domain.StoreIdentity, "delete", err)
	}

	var errs []error
	if err := s.metadata.Delete(ctx, id); err != nil {
		errs = append(errs, domain.NewStoreError(domain.StoreMetadata, "delete", err))
	}
	if err := s.telemetry.Delete(ctx, id); err != nil {
		errs = append(errs, domain.NewStoreError(domain.StoreTelemetry, "delete", err))
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		logger.WithSensor(s.logger(ctx), id).Error("sensor fragments left for reaper", zap.Error(err))
		return nil, err
	}

	logger.WithSensor(s.logger(ctx), id).Info("sensor deleted")
	return identity, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	engine := s.engine.Get()

	if req.Offset < 0 {
		return domain.ListResponse{}, domain.ErrInvalidLimit
	}
	limit := req.Limit
	switch {
	case limit < 0:
		return domain.ListResponse{}, domain.ErrInvalidLimit
	case limit == 0:
		limit = engine.DefaultListLimit
	case limit > engine.MaxListLimit:
		limit = engine.MaxListLimit
	}

	items, err := s.identities.List(ctx, req.Offset, limit+1)
	if err != nil {
		return domain.ListResponse{}, domain.NewStoreError(domain.StoreIdentity, "list", err)
	}

	sensors, pageInfo := pagination.BuildPageInfo(items, req.Offset, limit)
	if sensors == nil {
		sensors = []domain.SensorIdentity{}
	}
	return domain.ListResponse{Sensors: sensors, PageInfo: *pageInfo}, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*domain.SensorIdentity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	identity, err := s.identities.FindByName(ctx, name)
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreIdentity, "find_by_name", err)
	}
	if identity == nil {
		return nil, domain.ErrSensorNotFound
	}
	return identity, nil
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, s.log)
}

// buildView is the single merge step from the three fragments.
func buildView(identity *domain.SensorIdentity, metadata *domain.SensorMetadata, sample domain.TelemetrySample) domain.SensorView {
	return domain.SensorView{
		ID:           identity.ID,
		Name:         identity.Name,
		Latitude:     metadata.Latitude,
		Longitude:    metadata.Longitude,
		JoinedAt:     identity.JoinedAt.Format(domain.JoinedAtLayout),
		LastSeen:     sample.LastSeen,
		Type:         metadata.Type,
		MacAddress:   metadata.MacAddress,
		BatteryLevel: sample.BatteryLevel,
		Temperature:  sample.Temperature,
		Humidity:     sample.Humidity,
		Velocity:     sample.Velocity,
	}
}

func validateSample(sample domain.TelemetrySample) error {
	for _, v := range []float64{sample.BatteryLevel, sample.Temperature, sample.Humidity, sample.Velocity} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.ErrInvalidTelemetry
		}
	}
	return nil
}

func validateCoordinates(latitude, longitude float64) error {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return domain.ErrInvalidLatitude
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return domain.ErrInvalidLongitude
	}
	return nil
}
