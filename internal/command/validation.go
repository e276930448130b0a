package command

import (
	"fmt"
	"strconv"
)

// Recognised command names.
const (
	// NameFan toggles the fan. Values: "on", "off".
	NameFan = "fan"

	// NameAuto toggles automatic mode. Values: "ON", "OFF".
	// The purifier firmware's auto-mode parser is case-sensitive and
	// expects upper case, unlike the fan command.
	NameAuto = "auto"

	// NameThreshold sets the auto-mode air quality threshold.
	// Values: integers 100-2000 as a decimal string.
	NameThreshold = "threshold"
)

// Threshold value bounds (air quality sensor units).
const (
	thresholdMin = 100
	thresholdMax = 2000
)

// Validate checks a command name and value pair before it is queued.
// Returns ErrInvalidCommand or ErrInvalidValue; nothing is written on failure.
func Validate(name, value string) error {
	switch name {
	case NameFan:
		if value != "on" && value != "off" {
			return fmt.Errorf("%w: fan wants \"on\" or \"off\", got %q", ErrInvalidValue, value)
		}
	case NameAuto:
		if value != "ON" && value != "OFF" {
			return fmt.Errorf("%w: auto wants \"ON\" or \"OFF\", got %q", ErrInvalidValue, value)
		}
	case NameThreshold:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: threshold wants an integer, got %q", ErrInvalidValue, value)
		}
		if n < thresholdMin || n > thresholdMax {
			return fmt.Errorf("%w: threshold %d not in [%d, %d]", ErrInvalidValue, n, thresholdMin, thresholdMax)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
	return nil
}
