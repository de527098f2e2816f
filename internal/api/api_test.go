package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clambin/climate-guard/internal/configuration"
	"github.com/clambin/climate-guard/internal/guard"
	"github.com/clambin/climate-guard/internal/poller"
	"github.com/clambin/climate-guard/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSwitch struct{}

func (fakeSwitch) TurnOn(_ context.Context, _ string) error  { return nil }
func (fakeSwitch) TurnOff(_ context.Context, _ string) error { return nil }

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	runLimit := time.Hour
	cooldown := 10 * time.Minute
	heartbeat := time.Duration(0)
	cfg := configuration.Configuration{Devices: []configuration.Device{
		{Name: "heater", Switch: "switch.heater", RunLimit: &runLimit, Cooldown: &cooldown, Heartbeat: &heartbeat},
		{Name: "porch", Switch: "switch.porch", SunRequired: true, RunLimit: &runLimit, Cooldown: &cooldown, Heartbeat: &heartbeat},
	}}
	m := guard.NewManager(cfg, fakeSwitch{}, pubsub.New[poller.Update](slog.Default()), nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() { errCh <- m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})

	mux := http.NewServeMux()
	New(m, slog.Default()).AddRoutes(mux)
	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	received, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(received)
}

func TestServer_Devices(t *testing.T) {
	s := testServer(t)

	code, body := do(t, http.MethodGet, s.URL+"/api/devices", "")
	assert.Equal(t, http.StatusOK, code)
	var snapshots []guard.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snapshots))
	require.Len(t, snapshots, 2)
	assert.Equal(t, "heater", snapshots[0].Name)
	assert.Equal(t, "porch", snapshots[1].Name)

	code, body = do(t, http.MethodGet, s.URL+"/api/devices/heater", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"name":"heater"`)

	code, _ = do(t, http.MethodGet, s.URL+"/api/devices/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_OnOff(t *testing.T) {
	s := testServer(t)

	code, body := do(t, http.MethodPost, s.URL+"/api/devices/heater/on", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"state":"running"`)

	code, body = do(t, http.MethodPost, s.URL+"/api/devices/heater/off", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"state":"cooldown"`)

	// a denied request returns 409 with the denial reason
	code, body = do(t, http.MethodPost, s.URL+"/api/devices/porch/on", "")
	assert.Equal(t, http.StatusConflict, code)
	var denial struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &denial))
	assert.Equal(t, "sun", denial.Reason)
	assert.Contains(t, denial.Error, "sun is below the horizon")

	code, _ = do(t, http.MethodPost, s.URL+"/api/devices/missing/on", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Enabled(t *testing.T) {
	s := testServer(t)

	code, body := do(t, http.MethodPost, s.URL+"/api/devices/heater/enabled", `{"enabled":false}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"enabled":false`)

	// a disabled device denies turn-on requests
	code, _ = do(t, http.MethodPost, s.URL+"/api/devices/heater/on", "")
	assert.Equal(t, http.StatusConflict, code)

	code, body = do(t, http.MethodPost, s.URL+"/api/devices/heater/enabled", `{"enabled":true}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"enabled":true`)

	code, _ = do(t, http.MethodPost, s.URL+"/api/devices/heater/enabled", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_Settings(t *testing.T) {
	s := testServer(t)

	code, body := do(t, http.MethodGet, s.URL+"/api/devices/heater/settings", "")
	assert.Equal(t, http.StatusOK, code)
	var settings guard.SettingsView
	require.NoError(t, json.Unmarshal([]byte(body), &settings))
	assert.Equal(t, 60.0, settings.RunLimitMinutes)
	assert.Equal(t, 10.0, settings.CooldownMinutes)

	// a partial update leaves the other settings unchanged
	code, body = do(t, http.MethodPut, s.URL+"/api/devices/heater/settings", `{"runLimitMinutes":15,"allowedWeather":["sunny"]}`)
	assert.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal([]byte(body), &settings))
	assert.Equal(t, 15.0, settings.RunLimitMinutes)
	assert.Equal(t, 10.0, settings.CooldownMinutes)
	assert.Equal(t, []string{"sunny"}, settings.AllowedWeather)

	code, _ = do(t, http.MethodPut, s.URL+"/api/devices/heater/settings", `{"runLimitMinutes":-5}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, http.MethodPut, s.URL+"/api/devices/heater/settings", `{"allowedWeather":["sideways-rain"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, http.MethodPut, s.URL+"/api/devices/heater/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	// a rejected update applies none of its fields, not even the valid ones
	code, _ = do(t, http.MethodPut, s.URL+"/api/devices/heater/settings", `{"runLimitMinutes":25,"cooldownMinutes":-1}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, body = do(t, http.MethodGet, s.URL+"/api/devices/heater/settings", "")
	assert.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal([]byte(body), &settings))
	assert.Equal(t, 15.0, settings.RunLimitMinutes)
	assert.Equal(t, 10.0, settings.CooldownMinutes)
}
