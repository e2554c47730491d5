package config

import "testing"

func TestApplyOverride(t *testing.T) {
	cfg := Load()

	for key, value := range map[string]string{
		KeyGravityY:          "-3.5",
		KeyAirResistance:     "0.1",
		KeyVelocityThreshold: "0.02",
		KeyTimeStepHz:        "240",
		KeyMaxEntities:       "48",
		KeyRejectNaNContacts: "true",
	} {
		if err := cfg.ApplyOverride(key, value); err != nil {
			t.Errorf("ApplyOverride(%s, %s): %v", key, value, err)
		}
	}

	pc := cfg.Physics()
	if pc.Gravity.Y() != -3.5 || pc.AirResistance != 0.1 || pc.VelocityThreshold != 0.02 {
		t.Errorf("physics = %+v", pc)
	}
	if pc.TimeStep != 1.0/240 || pc.MaxEntities != 48 || !pc.RejectNaNContacts {
		t.Errorf("physics = %+v", pc)
	}
}

func TestApplyOverrideRejectsBadValues(t *testing.T) {
	cases := []struct{ key, value string }{
		{KeyGravityY, "down"},
		{KeyAirResistance, "-1"},
		{KeyAirResistance, "30"},
		{KeyAirResistance, "500"},
		{KeyTimeStepHz, "5"},
		{KeyTimeStepHz, "5000"},
		{KeyMaxEntities, "0"},
		{KeyMaxEntities, "10"},
		{KeyMaxEntities, "28"},
		{KeyRejectNaNContacts, "maybe"},
		{"commission_flat", "10"},
	}
	for _, tc := range cases {
		if err := ValidateOverride(tc.key, tc.value); err == nil {
			t.Errorf("ValidateOverride(%s, %s) accepted", tc.key, tc.value)
		}
	}

	cfg := Load()
	before := cfg.Physics()
	cfg.ApplyOverride(KeyAirResistance, "-1")
	if cfg.Physics() != before {
		t.Error("rejected override changed the config")
	}
}

func TestOverrideKeysAreAccepted(t *testing.T) {
	valid := map[string]string{
		KeyGravityY: "0", KeyAirResistance: "0", KeyVelocityThreshold: "0",
		KeyTimeStepHz: "60", KeyMaxEntities: "64", KeyRejectNaNContacts: "false",
	}
	for _, key := range OverrideKeys {
		if err := ValidateOverride(key, valid[key]); err != nil {
			t.Errorf("%s: %v", key, err)
		}
	}
}

func TestOverrideBoundaries(t *testing.T) {
	for key, value := range map[string]string{
		KeyAirResistance: "29.5",
		KeyMaxEntities:   "29",
		KeyTimeStepHz:    "30",
	} {
		if err := ValidateOverride(key, value); err != nil {
			t.Errorf("ValidateOverride(%s, %s): %v", key, value, err)
		}
	}

	pc := Load().Physics()
	if pc.MaxEntities < MinTableEntities {
		t.Errorf("default capacity %d cannot hold a table", pc.MaxEntities)
	}
}
