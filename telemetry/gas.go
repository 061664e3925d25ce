package telemetry

import (
	"encoding/json"
	"fmt"
)

const (
	gasThreshold  = 50.0
	windThreshold = 10.0
)

// GasReading is the weather station payload. Absent fields stay nil.
type GasReading struct {
	GasValue    *float64 `json:"gas_value"`
	GasRate     *int     `json:"gasrate"`
	RainValue   *float64 `json:"rain_value"`
	RainRate    *int     `json:"rainrate"`
	Height      *float64 `json:"height"`
	LuxValue    *float64 `json:"lux_value"`
	WindValue   *float64 `json:"wind_value"`
	Temperature *float64 `json:"temperature"`
}

// GasProcessor raises alerts for high gas concentration, rain and high wind.
type GasProcessor struct{}

func (GasProcessor) Topic() string { return TopicGas }
func (GasProcessor) Kind() string  { return KindGas }
func (GasProcessor) Priority() int { return 10 }

func (GasProcessor) Process(payload []byte) (any, []Alert, error) {
	var r GasReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var alerts []Alert
	if r.GasValue != nil && *r.GasValue > gasThreshold {
		alerts = append(alerts, Alert{
			Kind:    "gas_high",
			Field:   "gas_value",
			Value:   *r.GasValue,
			Message: fmt.Sprintf("gas concentration %.1f%% above %.0f%%", *r.GasValue, gasThreshold),
		})
	}
	if r.RainRate != nil && *r.RainRate == 1 {
		alerts = append(alerts, Alert{
			Kind:    "rain",
			Field:   "rainrate",
			Value:   1,
			Message: "rain detected",
		})
	}
	if r.WindValue != nil && *r.WindValue > windThreshold {
		alerts = append(alerts, Alert{
			Kind:    "wind_high",
			Field:   "wind_value",
			Value:   *r.WindValue,
			Message: fmt.Sprintf("wind speed %.1f km/h above %.0f km/h", *r.WindValue, windThreshold),
		})
	}
	return r, alerts, nil
}
