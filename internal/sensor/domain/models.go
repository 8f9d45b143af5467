package domain

import "time"

// JoinedAtLayout is the fixed presentation format of SensorView.JoinedAt.
const JoinedAtLayout = "01/02/2006, 15:04:05"

// SensorIdentity is the relational fragment of a sensor.
type SensorIdentity struct {
	ID       int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name     string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_sensors_name" json:"name"`
	JoinedAt time.Time `gorm:"column:joined_at;not null" json:"joined_at"`
}

func (SensorIdentity) TableName() string { return "sensors" }

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(latitude, longitude float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{longitude, latitude}}
}

// SensorMetadata is the document fragment of a sensor.
type SensorMetadata struct {
	ID              int64    `bson:"id" json:"id"`
	Longitude       float64  `bson:"longitude" json:"longitude"`
	Latitude        float64  `bson:"latitude" json:"latitude"`
	Location        GeoPoint `bson:"location" json:"-"`
	Type            string   `bson:"type" json:"type"`
	MacAddress      string   `bson:"mac_address" json:"mac_address"`
	Manufacturer    string   `bson:"manufacturer" json:"manufacturer"`
	Model           string   `bson:"model" json:"model"`
	SerialNumber    string   `bson:"serial_number" json:"serial_number"`
	FirmwareVersion string   `bson:"firmware_version" json:"firmware_version"`
}

// TelemetrySample is the latest dynamic reading cached for a sensor.
type TelemetrySample struct {
	LastSeen     string  `json:"last_seen"`
	BatteryLevel float64 `json:"battery_level"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	Velocity     float64 `json:"velocity"`
}

// SensorView is the consolidated read projection. It is never persisted.
type SensorView struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	JoinedAt     string  `json:"joined_at"`
	LastSeen     string  `json:"last_seen"`
	Type         string  `json:"type"`
	MacAddress   string  `json:"mac_address"`
	BatteryLevel float64 `json:"battery_level"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	Velocity     float64 `json:"velocity"`
}
