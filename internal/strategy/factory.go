package strategy

import "errors"

// Factory errors.
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrMissingWindow       = errors.New("strategy requires a positive window")
)

// Strategy type constants.
const (
	TypeMovingAverage = "MAVG"
	TypeMomentum      = "MOMENTUM"
)

// Spec selects and parameterizes a built-in strategy.
type Spec struct {
	Type   string `json:"type"`
	Window int    `json:"window"`
}

// FromSpec creates a built-in Strategy from a Spec. Validates required
// parameters per strategy type.
func FromSpec(code string, spec Spec) (Strategy, error) {
	switch spec.Type {
	case TypeMovingAverage:
		if spec.Window <= 0 {
			return nil, ErrMissingWindow
		}
		return NewMovingAverage(code, spec.Window), nil
	case TypeMomentum:
		if spec.Window <= 0 {
			return nil, ErrMissingWindow
		}
		return NewMomentum(code, spec.Window), nil
	default:
		return nil, ErrUnknownStrategyType
	}
}
