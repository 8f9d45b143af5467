package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sensorhub/internal/clock"
	"github.com/smallbiznis/sensorhub/internal/config"
	"github.com/smallbiznis/sensorhub/internal/observability"
	"github.com/smallbiznis/sensorhub/internal/ratelimit"
	sensordomain "github.com/smallbiznis/sensorhub/internal/sensor/domain"
	"github.com/smallbiznis/sensorhub/internal/sensor/memstore"
	"github.com/smallbiznis/sensorhub/internal/sensor/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	*Server
	telemetry *memstore.TelemetryCache
}

func newTestServer(t *testing.T, limiter *ratelimit.TelemetryIngestLimiter) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	telemetry := memstore.NewTelemetryCache()
	svc := service.New(service.Params{
		Log:        zap.NewNop(),
		Identities: memstore.NewIdentityStore(clock.NewFakeClock(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC))),
		Metadata:   memstore.NewMetadataStore(),
		Telemetry:  telemetry,
	})

	return testServer{
		Server: NewServer(ServerParams{
			Gin:              NewEngine(observability.Config{Environment: "test"}, nil),
			Cfg:              config.Config{},
			SensorSvc:        svc,
			TelemetryLimiter: limiter,
		}),
		telemetry: telemetry,
	}
}

func (s testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func (s testServer) register(t *testing.T, name string, lat, lon float64) int64 {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/sensors", map[string]any{
		"name":        name,
		"latitude":    lat,
		"longitude":   lon,
		"type":        "temperature",
		"mac_address": "aa:bb:cc:dd:ee:ff",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data sensordomain.SensorIdentity `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.ID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func TestSensorLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.register(t, "boiler", 41.38, 2.17)
	path := "/sensors/" + strconv.FormatInt(id, 10)

	rec := s.do(t, http.MethodPost, path+"/data", map[string]any{
		"last_seen":     "2024-03-01T09:00:00Z",
		"battery_level": 0.75,
		"temperature":   21.5,
		"humidity":      40,
		"velocity":      0,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data sensordomain.SensorView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "boiler", got.Data.Name)
	assert.Equal(t, "03/01/2024, 08:30:00", got.Data.JoinedAt)
	assert.Equal(t, 21.5, got.Data.Temperature)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", got.Data.MacAddress)

	rec = s.do(t, http.MethodGet, path+"/data", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)

	rec = s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterSensorErrors(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "dup", 0, 0)

	rec := s.do(t, http.MethodPost, "/sensors", map[string]any{"name": "dup", "latitude": 1, "longitude": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_name", decodeError(t, rec).Type)

	rec = s.do(t, http.MethodPost, "/sensors", map[string]any{"name": "x", "longitude": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "latitude", payload.Errors[0].Field)

	rec = s.do(t, http.MethodPost, "/sensors", map[string]any{"name": "x", "latitude": 95, "longitude": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload = decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_latitude", payload.Errors[0].Code)

	rec = s.do(t, http.MethodPost, "/sensors", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordTelemetryUnknownSensor(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/sensors/999/data", map[string]any{"temperature": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/sensors/abc/data", map[string]any{"temperature": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", decodeError(t, rec).Errors[0].Code)
}

func TestGetSensorCorruptTelemetry(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.register(t, "broken", 0, 0)
	require.NoError(t, s.telemetry.Set(context.Background(), id, []byte("[1,2,3]")))

	rec := s.do(t, http.MethodGet, "/sensors/"+strconv.FormatInt(id, 10), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "corrupt_telemetry", decodeError(t, rec).Type)

	rec = s.do(t, http.MethodGet, "/sensors/near?latitude=0&longitude=0&radius=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var near struct {
		Data []sensordomain.SensorView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &near))
	require.Len(t, near.Data, 1)
	assert.Zero(t, near.Data[0].Temperature)
}

func TestListSensorsNear(t *testing.T) {
	s := newTestServer(t, nil)
	first := s.register(t, "a", 10, 10)
	second := s.register(t, "b", 10.01, 10.01)
	s.register(t, "far", -10, -10)

	rec := s.do(t, http.MethodGet, "/sensors/near?latitude=10&longitude=10&radius=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []sensordomain.SensorView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, first, resp.Data[0].ID)
	assert.Equal(t, second, resp.Data[1].ID)

	rec = s.do(t, http.MethodGet, "/sensors/near?latitude=10&longitude=10&radius=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_radius", decodeError(t, rec).Errors[0].Code)

	rec = s.do(t, http.MethodGet, "/sensors/near?latitude=abc&longitude=10&radius=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSensorsAndByName(t *testing.T) {
	s := newTestServer(t, nil)
	for _, name := range []string{"a", "b", "c"} {
		s.register(t, name, 0, 0)
	}

	rec := s.do(t, http.MethodGet, "/sensors?skip=1&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data sensordomain.ListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data.Sensors, 1)
	assert.Equal(t, "b", list.Data.Sensors[0].Name)
	assert.True(t, list.Data.PageInfo.HasMore)

	rec = s.do(t, http.MethodGet, "/sensors?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/sensors/by-name/c", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/sensors/by-name/zzz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTelemetryIngestRateLimit(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewTelemetryIngestLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled:       true,
		SensorRate:    0.001,
		SensorBurst:   1,
		EndpointRate:  0.001,
		EndpointBurst: 100,
	}}, client)
	require.NoError(t, err)

	s := newTestServer(t, limiter)
	id := s.register(t, "chatty", 0, 0)
	path := "/sensors/" + strconv.FormatInt(id, 10) + "/data"

	rec := s.do(t, http.MethodPost, path, map[string]any{"temperature": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, path, map[string]any{"temperature": 2})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "sensor-rate", rec.Header().Get("X-Rate-Limited-Reason"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
}

func TestTelemetryIngestRateLimitUnavailable(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewTelemetryIngestLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled: true, SensorRate: 1, SensorBurst: 1, EndpointRate: 1, EndpointBurst: 1,
	}}, client)
	require.NoError(t, err)

	s := newTestServer(t, limiter)
	id := s.register(t, "offline", 0, 0)
	srv.Close()

	rec := s.do(t, http.MethodPost, "/sensors/"+strconv.FormatInt(id, 10)+"/data", map[string]any{"temperature": 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestMapError(t *testing.T) {
	storeErr := sensordomain.NewStoreError(sensordomain.StoreTelemetry, "get", errors.New("boom"))

	cases := []struct {
		err    error
		status int
	}{
		{sensordomain.ErrSensorNotFound, http.StatusNotFound},
		{sensordomain.ErrDuplicateName, http.StatusConflict},
		{&sensordomain.CorruptTelemetryError{SensorID: 1, Err: errors.New("bad")}, http.StatusUnprocessableEntity},
		{storeErr, http.StatusServiceUnavailable},
		{errors.Join(storeErr, errors.New("other")), http.StatusServiceUnavailable},
		{sensordomain.ErrInvalidTelemetry, http.StatusBadRequest},
		{ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}

	errType, code := classifyErrorForLog(sensordomain.ErrInvalidRadius)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "invalid_radius", code)
}
