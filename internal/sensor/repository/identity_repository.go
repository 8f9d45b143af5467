package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sensorhub/internal/clock"
	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"github.com/smallbiznis/sensorhub/pkg/db"
	"gorm.io/gorm"
)

type identityRepo struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewIdentityStore(conn *gorm.DB, genID *snowflake.Node, clk clock.Clock) domain.IdentityStore {
	return &identityRepo{db: conn, genID: genID, clock: clk}
}

func (r *identityRepo) Create(ctx context.Context, name string) (*domain.SensorIdentity, error) {
	identity := &domain.SensorIdentity{
		ID:       r.genID.Generate().Int64(),
		Name:     strings.TrimSpace(name),
		JoinedAt: r.clock.Now().UTC().Truncate(time.Microsecond),
	}

	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO sensors (id, name, joined_at) VALUES (?, ?, ?)`,
		identity.ID,
		identity.Name,
		identity.JoinedAt,
	).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateName
		}
		return nil, err
	}
	return identity, nil
}

func (r *identityRepo) FindByID(ctx context.Context, id int64) (*domain.SensorIdentity, error) {
	var identity domain.SensorIdentity
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, joined_at FROM sensors WHERE id = ?`,
		id,
	).Scan(&identity).Error
	if err != nil {
		return nil, err
	}
	if identity.ID == 0 {
		return nil, nil
	}
	return &identity, nil
}

func (r *identityRepo) FindByName(ctx context.Context, name string) (*domain.SensorIdentity, error) {
	var identity domain.SensorIdentity
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, joined_at FROM sensors WHERE name = ?`,
		strings.TrimSpace(name),
	).Scan(&identity).Error
	if err != nil {
		return nil, err
	}
	if identity.ID == 0 {
		return nil, nil
	}
	return &identity, nil
}

func (r *identityRepo) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Exec(`DELETE FROM sensors WHERE id = ?`, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *identityRepo) List(ctx context.Context, offset, limit int) ([]domain.SensorIdentity, error) {
	var identities []domain.SensorIdentity
	stmt := r.db.WithContext(ctx).
		Model(&domain.SensorIdentity{}).
		Order("id asc")
	if offset > 0 {
		stmt = stmt.Offset(offset)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&identities).Error; err != nil {
		return nil, err
	}
	return identities, nil
}
