package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/states", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]State{
			{EntityID: "sun.sun", State: "above_horizon"},
			{EntityID: "switch.heater", State: "off"},
		})
	})
	mux.HandleFunc("GET /api/states/{entity}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(State{EntityID: r.PathValue("entity"), State: "on"})
	})
	mux.HandleFunc("POST /api/services/{domain}/{service}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			EntityID string `json:"entity_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.EntityID == "" {
			http.Error(w, "missing entity_id", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func TestClient(t *testing.T) {
	s := testServer(t)
	c := NewClient(s.URL, "good-token", nil)
	ctx := context.Background()

	states, err := c.GetStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "sun.sun", states[0].EntityID)

	state, err := c.GetState(ctx, "switch.heater")
	require.NoError(t, err)
	assert.Equal(t, "switch.heater", state.EntityID)
	assert.True(t, state.IsOn())

	assert.NoError(t, c.TurnOn(ctx, "switch.heater"))
	assert.NoError(t, c.TurnOff(ctx, "switch.heater"))
}

func TestClient_BadToken(t *testing.T) {
	s := testServer(t)
	c := NewClient(s.URL, "bad-token", nil)

	_, err := c.GetStates(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "401")
}

func TestClient_Instrumented(t *testing.T) {
	s := testServer(t)
	registry := prometheus.NewRegistry()
	c := NewClient(s.URL, "good-token", registry)

	_, err := c.GetStates(context.Background())
	require.NoError(t, err)

	metrics, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.GetName())
	}
	assert.Contains(t, names, "climate_guard_homeassistant_http_requests_total")
	assert.Contains(t, names, "climate_guard_homeassistant_http_request_duration_seconds")
}
