// Package homeassistant implements the subset of the Home Assistant API that climate-guard needs:
// reading entity states, calling switch services and receiving state_changed events over the websocket API.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client calls the Home Assistant REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var (
	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "climate_guard",
		Subsystem: "homeassistant",
		Name:      "http_requests_total",
		Help:      "total number of http requests",
	},
		[]string{"code", "method"},
	)

	requestDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "climate_guard",
		Subsystem: "homeassistant",
		Name:      "http_request_duration_seconds",
		Help:      "duration of http requests",
	},
		[]string{"code", "method"},
	)
)

// NewClient returns a Client for the Home Assistant instance at url, authenticating with a long-lived access token.
// If registry is not nil, the client's http calls are instrumented and registered with it.
func NewClient(url, token string, registry prometheus.Registerer) *Client {
	rt := http.DefaultTransport
	if registry != nil {
		registry.MustRegister(requestCounter, requestDuration)
		rt = promhttp.InstrumentRoundTripperCounter(requestCounter,
			promhttp.InstrumentRoundTripperDuration(requestDuration, rt),
		)
	}
	return &Client{
		baseURL:    url,
		token:      token,
		httpClient: &http.Client{Transport: rt},
	}
}

// GetState returns the current state of one entity.
func (c *Client) GetState(ctx context.Context, entityID string) (State, error) {
	var state State
	err := c.call(ctx, http.MethodGet, "/api/states/"+entityID, nil, &state)
	return state, err
}

// GetStates returns the current state of all entities.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	var states []State
	err := c.call(ctx, http.MethodGet, "/api/states", nil, &states)
	return states, err
}

// CallService calls a Home Assistant service for the given entity.
func (c *Client) CallService(ctx context.Context, domain, service, entityID string) error {
	body := struct {
		EntityID string `json:"entity_id"`
	}{EntityID: entityID}
	return c.call(ctx, http.MethodPost, "/api/services/"+domain+"/"+service, body, nil)
}

// TurnOn switches on the given switch entity.
func (c *Client) TurnOn(ctx context.Context, entityID string) error {
	return c.CallService(ctx, "switch", "turn_on", entityID)
}

// TurnOff switches off the given switch entity.
func (c *Client) TurnOff(ctx context.Context, entityID string) error {
	return c.CallService(ctx, "switch", "turn_off", entityID)
}

func (c *Client) call(ctx context.Context, method, path string, request, response any) error {
	var body bytes.Buffer
	if request != nil {
		if err := json.NewEncoder(&body).Encode(request); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if response != nil {
		if err = json.NewDecoder(resp.Body).Decode(response); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
