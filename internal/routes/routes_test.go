package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evn/fleet_tracker/config"
	"github.com/evn/fleet_tracker/internal/models"
	"github.com/evn/fleet_tracker/internal/repositories"
	"github.com/evn/fleet_tracker/internal/services/auth"
	"github.com/evn/fleet_tracker/internal/services/feed"
)

const testSecret = "route-tests-secret-0123"

type env struct {
	store  *repositories.MemoryStore
	router http.Handler
	token  string
	tagID  int64
}

func ptr[T any](v T) *T { return &v }

func newEnv(t *testing.T, cfg *config.Config, redisClient *redis.Client) *env {
	t.Helper()

	store := repositories.NewMemoryStore()
	d1 := store.AddDevice(models.Device{Identifier: "D1", AccountID: ptr(int64(1))})
	store.AddDevice(models.Device{Identifier: "LOOSE", AccountID: ptr(int64(1))})
	store.AddDevice(models.Device{Identifier: "OTHER", AccountID: ptr(int64(2))})
	tag := store.AddTag(models.Tag{AccountID: 1, Name: "Ruta 1"})
	store.AddVehicle(models.Vehicle{AccountID: 1, Name: "Bus 1", Plate: ptr("BCS-001"), DeviceID: &d1.ID, TagIDs: []int64{tag.ID}})

	router, hub := Setup(cfg, store, redisClient)
	t.Cleanup(hub.Close)

	token, err := auth.NewJWTService(cfg.JwtSecret).GenerateToken(1, "dispatcher")
	require.NoError(t, err)

	return &env{store: store, router: router, token: token, tagID: tag.ID}
}

func testConfig() *config.Config {
	return &config.Config{
		JwtSecret:        testSecret,
		Location:         time.UTC,
		IngestRateLimit:  120,
		RouteMaxPoints:   300,
		LivePushInterval: time.Second,
	}
}

func (e *env) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := newEnv(t, testConfig(), nil)
	rec := e.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPingThenLiveFeed(t *testing.T) {
	e := newEnv(t, testConfig(), nil)

	rec := e.do(t, http.MethodPost, "/api/bus-locations",
		`{"serial_number":"D1","latitude":24.1301761,"longitude":-110.3111813,"speed":0}`, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ack struct {
		OK      bool `json:"ok"`
		Vehicle *struct {
			Name string `json:"name"`
		} `json:"vehicle"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.True(t, ack.OK)
	require.NotNil(t, ack.Vehicle)
	assert.Equal(t, "Bus 1", ack.Vehicle.Name)

	rec = e.do(t, http.MethodGet, "/api/monitoring/positions", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var live feed.LiveFeed
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &live))
	require.Len(t, live.Vehicles, 1)
	device := live.Vehicles[0].Device
	require.NotNil(t, device)
	assert.Equal(t, models.StatusStopped, device.Status)
	assert.Equal(t, 24.1301761, *device.Latitude)
	assert.Equal(t, -110.3111813, *device.Longitude)

	require.Len(t, live.StandaloneDevices, 1)
	assert.Equal(t, "LOOSE", live.StandaloneDevices[0].Name)
	assert.Nil(t, live.StandaloneDevices[0].Device.Latitude)
}

func TestIngestErrors(t *testing.T) {
	e := newEnv(t, testConfig(), nil)

	rec := e.do(t, http.MethodPost, "/api/bus-locations", `{"serial_number":"NOPE","latitude":1,"longitude":2}`, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"device_not_found"`)
	assert.Equal(t, 0, e.store.PositionCount())

	rec = e.do(t, http.MethodPost, "/api/bus-locations", `{"serial_number":"D1","latitude":"24.1","longitude":2}`, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"latitude"`)

	rec = e.do(t, http.MethodPost, "/api/vehicle-locations", `{"serial_number":"NEW-1","latitude":1,"longitude":2,"angle":179.6}`, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"vehicle":null`)
	assert.Equal(t, 4, e.store.DeviceCount())
}

func TestDashboardRoutesRequireToken(t *testing.T) {
	e := newEnv(t, testConfig(), nil)
	for _, path := range []string{"/api/monitoring/positions", "/api/tags", "/api/stats", "/api/dashboard"} {
		rec := e.do(t, http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	e := newEnv(t, testConfig(), nil)
	for _, lat := range []float64{24.10, 24.11, 24.12} {
		body, _ := json.Marshal(map[string]interface{}{"serial_number": "D1", "latitude": lat, "longitude": -110.3, "speed": 30})
		require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/bus-locations", string(body), false).Code)
	}
	today := time.Now().UTC().Format("2006-01-02")

	rec := e.do(t, http.MethodGet, "/api/history/positions?device_id=1&date="+today, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var history feed.DeviceHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.NotNil(t, history.Vehicle)
	assert.Equal(t, "Bus 1", history.Vehicle.Name)
	assert.Len(t, history.Positions, 3)

	rec = e.do(t, http.MethodGet, "/api/history/positions?device_id=3&date="+today, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"vehicle":null,"device":null,"positions":[]}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/history/positions?device_id=1", "", true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"date"`)

	rec = e.do(t, http.MethodGet, "/api/history/positions-by-tags?date="+today+"&tag_ids[]=1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var routes feed.Routes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
	require.Len(t, routes.Routes, 1)
	assert.Equal(t, "#2563eb", routes.Routes[0].Color)
	assert.Len(t, routes.Routes[0].Positions, 3)

	rec = e.do(t, http.MethodGet, "/api/history/positions-by-tags?date="+today+"&tag_ids=999", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"routes":[]}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/history/positions-by-tags?date="+today, "", true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStatsAndExport(t *testing.T) {
	e := newEnv(t, testConfig(), nil)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/bus-locations",
		`{"serial_number":"D1","latitude":24.1,"longitude":-110.3,"speed":42}`, false).Code)

	rec := e.do(t, http.MethodGet, "/api/stats?days=30", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Days     int `json:"days"`
		Vehicles []struct {
			VehicleName string   `json:"vehicle_name"`
			MaxSpeed    *float64 `json:"max_speed_kmh"`
			Count       int      `json:"positions_count"`
		} `json:"vehicles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 30, body.Days)
	require.Len(t, body.Vehicles, 1)
	assert.Equal(t, 1, body.Vehicles[0].Count)
	require.NotNil(t, body.Vehicles[0].MaxSpeed)
	assert.Equal(t, 42.0, *body.Vehicles[0].MaxSpeed)

	assert.Equal(t, http.StatusUnprocessableEntity, e.do(t, http.MethodGet, "/api/stats?days=0", "", true).Code)

	rec = e.do(t, http.MethodGet, "/api/dashboard", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"vehicleStatsLast7Days"`)
	assert.Contains(t, rec.Body.String(), `"vehicleStatsLast30Days"`)

	rec = e.do(t, http.MethodGet, "/api/stats/export?days=7", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "fleet-stats-7d-")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))
}

func TestTags(t *testing.T) {
	e := newEnv(t, testConfig(), nil)
	rec := e.do(t, http.MethodGet, "/api/tags", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Ruta 1"`)
}

func TestIngestRateLimitWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := testConfig()
	cfg.IngestRateLimit = 2
	e := newEnv(t, cfg, client)

	ping := `{"serial_number":"D1","latitude":1,"longitude":2}`
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/bus-locations", ping, false).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/bus-locations", ping, false).Code)
	rec := e.do(t, http.MethodPost, "/api/bus-locations", ping, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLiveSocketWithQueryToken(t *testing.T) {
	e := newEnv(t, testConfig(), nil)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+e.token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]json.RawMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.JSONEq(t, `"live"`, string(msg["type"]))
	assert.Contains(t, string(msg["vehicles"]), `"Bus 1"`)
}
