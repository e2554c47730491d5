package config

import (
	"fmt"
	"strconv"
)

// Runtime override keys. Only physics settings can be changed while the
// server runs; they apply to tables racked after the change.
const (
	KeyGravityY          = "gravity_y"
	KeyAirResistance     = "air_resistance"
	KeyVelocityThreshold = "velocity_threshold"
	KeyTimeStepHz        = "timestep_hz"
	KeyMaxEntities       = "max_entities"
	KeyRejectNaNContacts = "reject_nan_contacts"
)

const (
	MinTimeStepHz = 30
	MaxTimeStepHz = 1000

	// MinTableEntities is the body count of one racked table: the slate,
	// six cushions, six pockets and sixteen balls.
	MinTableEntities = 1 + 6 + 6 + 16
)

// OverrideKeys lists every key accepted by ApplyOverride.
var OverrideKeys = []string{
	KeyGravityY, KeyAirResistance, KeyVelocityThreshold,
	KeyTimeStepHz, KeyMaxEntities, KeyRejectNaNContacts,
}

// ValidateOverride checks value without applying it.
func ValidateOverride(key, value string) error {
	var scratch Config
	return scratch.ApplyOverride(key, value)
}

// ApplyOverride parses value and stores it in the field named by key.
func (c *Config) ApplyOverride(key, value string) error {
	switch key {
	case KeyGravityY:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %s", key, value)
		}
		c.set(func() { c.GravityY = f })
	case KeyAirResistance, KeyVelocityThreshold:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid non-negative float for %s: %s", key, value)
		}
		// Drag scales velocity by 1 - f*step each step, which must stay
		// positive at the coarsest allowed step.
		if key == KeyAirResistance && f >= MinTimeStepHz {
			return fmt.Errorf("invalid value for %s: %s (must be below %d)", key, value, MinTimeStepHz)
		}
		if key == KeyAirResistance {
			c.set(func() { c.AirResistance = f })
		} else {
			c.set(func() { c.VelocityThreshold = f })
		}
	case KeyTimeStepHz:
		n, err := strconv.Atoi(value)
		if err != nil || n < MinTimeStepHz || n > MaxTimeStepHz {
			return fmt.Errorf("invalid step rate for %s: %s (%d-%d)", key, value, MinTimeStepHz, MaxTimeStepHz)
		}
		c.set(func() { c.TimeStepHz = n })
	case KeyMaxEntities:
		n, err := strconv.Atoi(value)
		if err != nil || n < MinTableEntities {
			return fmt.Errorf("invalid value for %s: %s (a table needs at least %d)", key, value, MinTableEntities)
		}
		c.set(func() { c.MaxEntities = n })
	case KeyRejectNaNContacts:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %s", key, value)
		}
		c.set(func() { c.RejectNaNContacts = b })
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func (c *Config) set(apply func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	apply()
}
