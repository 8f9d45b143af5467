package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
)

const scanBatchSize = 500

type telemetryRepo struct {
	client *redis.Client
	prefix string
}

// NewTelemetryCache keys samples by prefix followed by the decimal id.
func NewTelemetryCache(client *redis.Client, prefix string) domain.TelemetryCache {
	return &telemetryRepo{client: client, prefix: prefix}
}

func (r *telemetryRepo) key(id int64) string {
	return r.prefix + strconv.FormatInt(id, 10)
}

func (r *telemetryRepo) Set(ctx context.Context, id int64, payload []byte) error {
	return r.client.Set(ctx, r.key(id), payload, 0).Err()
}

func (r *telemetryRepo) Get(ctx context.Context, id int64) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (r *telemetryRepo) Delete(ctx context.Context, id int64) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

// ListIDs scans for sample keys. Keys under the prefix that do not end in a
// decimal id belong to other components and are skipped.
func (r *telemetryRepo) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	iter := r.client.Scan(ctx, 0, r.prefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		raw := strings.TrimPrefix(iter.Val(), r.prefix)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
