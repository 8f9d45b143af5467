package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	sensordomain "github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"github.com/smallbiznis/sensorhub/pkg/db/pagination"
)

type registerSensorRequest struct {
	Name            string   `json:"name"`
	Longitude       *float64 `json:"longitude"`
	Latitude        *float64 `json:"latitude"`
	Type            string   `json:"type"`
	MacAddress      string   `json:"mac_address"`
	Manufacturer    string   `json:"manufacturer"`
	Model           string   `json:"model"`
	SerialNumber    string   `json:"serial_number"`
	FirmwareVersion string   `json:"firmware_version"`
}

type recordTelemetryRequest struct {
	LastSeen     string  `json:"last_seen"`
	BatteryLevel float64 `json:"battery_level"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	Velocity     float64 `json:"velocity"`
}

func (s *Server) RegisterSensor(c *gin.Context) {
	var req registerSensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Latitude == nil {
		AbortWithError(c, newValidationError("latitude", "required", "latitude is required"))
		return
	}
	if req.Longitude == nil {
		AbortWithError(c, newValidationError("longitude", "required", "longitude is required"))
		return
	}

	resp, err := s.sensorSvc.Register(c.Request.Context(), sensordomain.RegisterRequest{
		Name:            strings.TrimSpace(req.Name),
		Longitude:       *req.Longitude,
		Latitude:        *req.Latitude,
		Type:            req.Type,
		MacAddress:      req.MacAddress,
		Manufacturer:    req.Manufacturer,
		Model:           req.Model,
		SerialNumber:    req.SerialNumber,
		FirmwareVersion: req.FirmwareVersion,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListSensors(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.sensorSvc.List(c.Request.Context(), sensordomain.ListRequest{
		Offset: query.Skip,
		Limit:  query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSensorsNear(c *gin.Context) {
	latitude, err := parseRequiredFloat(c.Query("latitude"))
	if err != nil {
		AbortWithError(c, newValidationError("latitude", "invalid_latitude", "latitude must be a number"))
		return
	}
	longitude, err := parseRequiredFloat(c.Query("longitude"))
	if err != nil {
		AbortWithError(c, newValidationError("longitude", "invalid_longitude", "longitude must be a number"))
		return
	}
	radius, err := parseRequiredFloat(c.Query("radius"))
	if err != nil {
		AbortWithError(c, newValidationError("radius", "invalid_radius", "radius must be a number"))
		return
	}

	resp, err := s.sensorSvc.Near(c.Request.Context(), sensordomain.NearRequest{
		Latitude:  latitude,
		Longitude: longitude,
		RadiusKm:  radius,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSensorByName(c *gin.Context) {
	resp, err := s.sensorSvc.GetByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSensor(c *gin.Context) {
	id, err := parseSensorID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.sensorSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecordTelemetry(c *gin.Context) {
	id, err := parseSensorID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req recordTelemetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.sensorSvc.RecordTelemetry(c.Request.Context(), id, sensordomain.TelemetrySample{
		LastSeen:     strings.TrimSpace(req.LastSeen),
		BatteryLevel: req.BatteryLevel,
		Temperature:  req.Temperature,
		Humidity:     req.Humidity,
		Velocity:     req.Velocity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteSensor(c *gin.Context) {
	id, err := parseSensorID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.sensorSvc.Delete(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
