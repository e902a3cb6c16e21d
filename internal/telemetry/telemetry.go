package telemetry

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Message is one weather observation as published on the MQTT topic. Field
// names follow the OpenWeatherMap-derived wire contract; the subscriber adds
// server_received_ts before the reading is stored.
type Message struct {
	Timestamp int64   `json:"timestamp" validate:"required,gt=0"`
	Temp      float64 `json:"owm_temp"`
	Humidity  float64 `json:"owm_humidity" validate:"gte=0,lte=100"`
	Pressure  float64 `json:"owm_pressure" validate:"gte=0"`
	WindSpeed float64 `json:"owm_wind_speed" validate:"gte=0"`
	Weather   string  `json:"owm_weather"`
}

// Validate rejects messages that decoded but carry impossible values.
func (m Message) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid telemetry: %w", err)
	}
	return nil
}
