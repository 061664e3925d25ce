package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
)

const (
	minAngle        = -45.0
	maxAngle        = 45.0
	changeThreshold = 10.0
)

// AngleReading is the three-axis inclinometer payload.
type AngleReading struct {
	AngleX *float64 `json:"angle_x"`
	AngleY *float64 `json:"angle_y"`
	AngleZ *float64 `json:"angle_z"`
}

// AngleProcessor raises alerts when an axis leaves the safe range or jumps
// sharply between consecutive readings.
type AngleProcessor struct {
	mu   sync.Mutex
	last map[string]float64
}

// NewAngleProcessor returns a processor with no previous reading.
func NewAngleProcessor() *AngleProcessor {
	return &AngleProcessor{last: make(map[string]float64, 3)}
}

func (*AngleProcessor) Topic() string { return TopicAngle }
func (*AngleProcessor) Kind() string  { return KindAngle }
func (*AngleProcessor) Priority() int { return 20 }

func (p *AngleProcessor) Process(payload []byte) (any, []Alert, error) {
	var r AngleReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.AngleX == nil && r.AngleY == nil && r.AngleZ == nil {
		return nil, nil, fmt.Errorf("%w: no angle axis present", ErrMalformed)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var alerts []Alert
	axes := []struct {
		field string
		value *float64
	}{
		{"angle_x", r.AngleX},
		{"angle_y", r.AngleY},
		{"angle_z", r.AngleZ},
	}
	for _, axis := range axes {
		if axis.value == nil {
			continue
		}
		v := *axis.value
		if v < minAngle || v > maxAngle {
			alerts = append(alerts, Alert{
				Kind:    "angle_range",
				Field:   axis.field,
				Value:   v,
				Message: fmt.Sprintf("%s %.1f outside %.0f..%.0f", axis.field, v, minAngle, maxAngle),
			})
		}
		if prev, ok := p.last[axis.field]; ok {
			if delta := math.Abs(v - prev); delta > changeThreshold {
				alerts = append(alerts, Alert{
					Kind:    "angle_change",
					Field:   axis.field,
					Value:   v,
					Message: fmt.Sprintf("%s changed by %.1f", axis.field, delta),
				})
			}
		}
		p.last[axis.field] = v
	}
	return r, alerts, nil
}
