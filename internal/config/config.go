// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5s" parse directly.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Asset defines one monitored asset inside an outlet. The pointer fields
// accept an explicit zero: omitting them falls back to the engine defaults,
// while consumption_rate_lph: 0 or anomaly_probability: 0 means exactly that.
type Asset struct {
	ID                     string   `yaml:"id"`
	Kind                   string   `yaml:"kind"` // fuel | power
	Tick                   Duration `yaml:"tick"`
	CapacityLiters         float64  `yaml:"capacity_liters"`
	MaxLoadKW              float64  `yaml:"max_load_kw"`
	ConsumptionRateLPH     *float64 `yaml:"consumption_rate_lph"`
	ConsumptionMultiplier  float64  `yaml:"consumption_multiplier"`
	LowPct                 float64  `yaml:"low_pct"`
	CriticalPct            float64  `yaml:"critical_pct"`
	OverloadFraction       float64  `yaml:"overload_fraction"`
	AnomalyProbability     *float64 `yaml:"anomaly_probability"`
	AnomalyDropMin         int      `yaml:"anomaly_drop_min"`
	AnomalyDropMax         int      `yaml:"anomaly_drop_max"`
	AnomalyFlagReset       Duration `yaml:"anomaly_flag_reset"`
	ActivityLogCapacity    int      `yaml:"activity_log_capacity"`
	AnomalyHistoryCapacity int      `yaml:"anomaly_history_capacity"`
	InitialLevelPct        *float64 `yaml:"initial_level_pct"`
}

// Outlet groups the assets of one retail location.
type Outlet struct {
	ID     string  `yaml:"id"`
	Name   string  `yaml:"name"`
	Region string  `yaml:"region"`
	Assets []Asset `yaml:"assets"`
}

// SimulationConfig is the root configuration.
type SimulationConfig struct {
	Outlets []Outlet `yaml:"outlets"`
}

// Load loads YAML config and validates it against a CUE schema.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Outlets) == 0 {
		return nil, fmt.Errorf("no outlets defined in %s", configPath)
	}
	for _, o := range cfg.Outlets {
		if len(o.Assets) == 0 {
			return nil, fmt.Errorf("outlet %s has no assets", o.ID)
		}
	}
	return &cfg, nil
}
