// Package reaper removes sensor fragments left behind by interrupted
// deletes and failed registration compensations.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/sensorhub/internal/clock"
	obsmetrics "github.com/smallbiznis/sensorhub/internal/observability/metrics"
	"github.com/smallbiznis/sensorhub/internal/ratelimit"
	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockKey = "sensorhub:reaper:lock"

var ErrInvalidConfig = errors.New("invalid_reaper_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	Identities domain.IdentityStore
	Metadata   domain.MetadataStore
	Telemetry  domain.TelemetryCache
	Clock      clock.Clock
	Locker     *ratelimit.Locker         `optional:"true"`
	Metrics    *obsmetrics.ReaperMetrics `optional:"true"`
	Config     Config                    `optional:"true"`
}

type Reaper struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	identities domain.IdentityStore
	metadata   domain.MetadataStore
	telemetry  domain.TelemetryCache
	locker     *ratelimit.Locker
	metrics    *obsmetrics.ReaperMetrics
}

// RunResult summarises one sweep.
type RunResult struct {
	RunID            string
	Skipped          bool
	TelemetryRemoved int
	MetadataRemoved  int
	GhostsRemoved    int
}

func New(p Params) (*Reaper, error) {
	if p.Log == nil || p.Identities == nil || p.Metadata == nil || p.Telemetry == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	m := p.Metrics
	if m == nil {
		m = obsmetrics.Reaper()
	}
	return &Reaper{
		log:        p.Log.Named("reaper").With(zap.String("component", "reaper")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		identities: p.Identities,
		metadata:   p.Metadata,
		telemetry:  p.Telemetry,
		locker:     p.Locker,
		metrics:    m,
	}, nil
}

// RunOnce performs a single sweep. Without a locker every replica sweeps.
func (r *Reaper) RunOnce(ctx context.Context) (RunResult, error) {
	now := r.clock.Now()
	result := RunResult{RunID: ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()}
	log := r.log.With(zap.String("run_id", result.RunID))

	var lease *ratelimit.Lease
	if r.locker != nil {
		var err error
		lease, err = r.locker.Acquire(ctx, lockKey, r.cfg.LockTTL)
		if errors.Is(err, ratelimit.ErrLockHeld) {
			r.metrics.IncLockSkipped()
			log.Debug("reaper lock held elsewhere, skipping run")
			result.Skipped = true
			return result, nil
		}
		if err != nil {
			r.metrics.IncRunError(err)
			return result, fmt.Errorf("acquire reaper lock: %w", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to release reaper lock", zap.Error(err))
			}
		}()
	}

	r.metrics.IncRun()
	start := time.Now()

	var err error
	n, sweepErr := r.sweepTelemetry(ctx)
	result.TelemetryRemoved = n
	err = errors.Join(err, sweepErr)

	n, sweepErr = r.sweepMetadata(ctx)
	result.MetadataRemoved = n
	err = errors.Join(err, sweepErr)

	// The ghost sweep pages the whole identity table.
	if lease != nil {
		if err := lease.Extend(ctx, r.cfg.LockTTL); err != nil {
			log.Warn("failed to extend reaper lock", zap.Error(err))
		}
	}
	n, sweepErr = r.sweepGhosts(ctx, now)
	result.GhostsRemoved = n
	err = errors.Join(err, sweepErr)

	r.metrics.ObserveRunDuration(time.Since(start))
	r.metrics.AddOrphansRemoved(obsmetrics.OrphanKindTelemetry, result.TelemetryRemoved)
	r.metrics.AddOrphansRemoved(obsmetrics.OrphanKindMetadata, result.MetadataRemoved)
	r.metrics.AddOrphansRemoved(obsmetrics.OrphanKindGhost, result.GhostsRemoved)

	fields := []zap.Field{
		zap.Int("telemetry_removed", result.TelemetryRemoved),
		zap.Int("metadata_removed", result.MetadataRemoved),
		zap.Int("ghosts_removed", result.GhostsRemoved),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		r.metrics.IncRunError(err)
		log.Warn("reaper run finished with errors", append(fields, zap.Error(err))...)
		return result, err
	}
	log.Info("reaper run finished", fields...)
	return result, nil
}

func (r *Reaper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(r.cfg.RunInterval)

	for {
		if lag := time.Since(nextRun); lag > 0 {
			r.metrics.ObserveRunLoopLag(lag)
		}
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("reaper run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(r.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweepTelemetry drops cached samples written after their identity was deleted.
func (r *Reaper) sweepTelemetry(ctx context.Context) (int, error) {
	ids, err := r.telemetry.ListIDs(ctx)
	if err != nil {
		return 0, domain.NewStoreError(domain.StoreTelemetry, "list_ids", err)
	}
	return r.removeOrphans(ctx, ids, domain.StoreTelemetry, r.telemetry.Delete)
}

func (r *Reaper) sweepMetadata(ctx context.Context) (int, error) {
	ids, err := r.metadata.ListIDs(ctx)
	if err != nil {
		return 0, domain.NewStoreError(domain.StoreMetadata, "list_ids", err)
	}
	return r.removeOrphans(ctx, ids, domain.StoreMetadata, r.metadata.Delete)
}

func (r *Reaper) removeOrphans(ctx context.Context, ids []int64, store string, remove func(context.Context, int64) error) (int, error) {
	var (
		removed int
		errs    error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, errors.Join(errs, err)
		}
		identity, err := r.identities.FindByID(ctx, id)
		if err != nil {
			errs = errors.Join(errs, domain.NewStoreError(domain.StoreIdentity, "find_by_id", err))
			continue
		}
		if identity != nil {
			continue
		}
		if err := remove(ctx, id); err != nil {
			errs = errors.Join(errs, domain.NewStoreError(store, "delete", err))
			continue
		}
		removed++
		r.log.Debug("removed orphan fragment", zap.String("store", store), zap.Int64("sensor_id", id))
	}
	return removed, errs
}

// sweepGhosts deletes identities that never got metadata. Only identities
// older than the grace period qualify so in-flight registrations survive.
func (r *Reaper) sweepGhosts(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-r.cfg.GracePeriod)

	var ghosts []int64
	for offset := 0; ; offset += r.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		page, err := r.identities.List(ctx, offset, r.cfg.BatchSize)
		if err != nil {
			return 0, domain.NewStoreError(domain.StoreIdentity, "list", err)
		}
		for _, identity := range page {
			if !identity.JoinedAt.Before(cutoff) {
				continue
			}
			metadata, err := r.metadata.FindByID(ctx, identity.ID)
			if err != nil {
				return 0, domain.NewStoreError(domain.StoreMetadata, "find_by_id", err)
			}
			if metadata == nil {
				ghosts = append(ghosts, identity.ID)
			}
		}
		if len(page) < r.cfg.BatchSize {
			break
		}
	}

	// Deleting while paging would shift the offsets, so ghosts are removed afterwards.
	var (
		removed int
		errs    error
	)
	for _, id := range ghosts {
		err := r.identities.Delete(ctx, id)
		switch {
		case err == nil:
			removed++
			if tErr := r.telemetry.Delete(ctx, id); tErr != nil {
				errs = errors.Join(errs, domain.NewStoreError(domain.StoreTelemetry, "delete", tErr))
			}
			r.log.Info("removed identity ghost", zap.Int64("sensor_id", id))
		case errors.Is(err, domain.ErrNotFound):
		default:
			errs = errors.Join(errs, domain.NewStoreError(domain.StoreIdentity, "delete", err))
		}
	}
	return removed, errs
}
