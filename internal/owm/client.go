package owm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Observation is one normalized current-weather result from OpenWeatherMap.
type Observation struct {
	Temp      float64
	Humidity  float64
	Pressure  float64
	WindSpeed float64
	Weather   string
}

// Client calls the OpenWeatherMap current-weather endpoint for a fixed
// coordinate pair. Calls go through a circuit breaker so an OWM outage trips
// fast instead of burning the fetch timeout on every tick; there is no retry
// in either state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	lat        float64
	lon        float64
	units      string
	breaker    *gobreaker.CircuitBreaker
}

func NewClient(apiKey string, lat, lon float64, units string, timeout time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweathermap",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		lat:        lat,
		lon:        lon,
		units:      units,
		breaker:    cb,
	}
}

// Current fetches the current conditions for the configured coordinates.
func (c *Client) Current(ctx context.Context) (Observation, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return Observation{}, err
	}
	return res.(Observation), nil
}

func (c *Client) fetch(ctx context.Context) (Observation, error) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%g", c.lat))
	values.Set("lon", fmt.Sprintf("%g", c.lon))
	values.Set("units", c.units)
	values.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return Observation{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Observation{}, fmt.Errorf("owm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Observation{}, fmt.Errorf("owm status %d", resp.StatusCode)
	}

	var payload struct {
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
			Pressure float64 `json:"pressure"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Observation{}, fmt.Errorf("owm decode: %w", err)
	}
	if len(payload.Weather) == 0 {
		return Observation{}, fmt.Errorf("owm response missing weather description")
	}

	return Observation{
		Temp:      payload.Main.Temp,
		Humidity:  payload.Main.Humidity,
		Pressure:  payload.Main.Pressure,
		WindSpeed: payload.Wind.Speed,
		Weather:   payload.Weather[0].Description,
	}, nil
}
