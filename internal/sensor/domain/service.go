package domain

import (
	"context"

	"github.com/smallbiznis/sensorhub/pkg/db/pagination"
)

// Service is the consolidation engine over the three sensor stores.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*SensorIdentity, error)
	RecordTelemetry(ctx context.Context, id int64, sample TelemetrySample) (*SensorView, error)
	Get(ctx context.Context, id int64) (*SensorView, error)
	Near(ctx context.Context, req NearRequest) ([]SensorView, error)
	Delete(ctx context.Context, id int64) (*SensorIdentity, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByName(ctx context.Context, name string) (*SensorIdentity, error)
}

type RegisterRequest struct {
	Name            string  `json:"name"`
	Longitude       float64 `json:"longitude"`
	Latitude        float64 `json:"latitude"`
	Type            string  `json:"type"`
	MacAddress      string  `json:"mac_address"`
	Manufacturer    string  `json:"manufacturer"`
	Model           string  `json:"model"`
	SerialNumber    string  `json:"serial_number"`
	FirmwareVersion string  `json:"firmware_version"`
}

type NearRequest struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

type ListRequest struct {
	Offset int
	Limit  int
}

type ListResponse struct {
	Sensors  []SensorIdentity    `json:"sensors"`
	PageInfo pagination.PageInfo `json:"page_info"`
}
