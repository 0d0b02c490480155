// Package runconfig loads JSON run configurations for the CLI and the
// public facade. Top-level scalars are coerced loosely (JSON numbers
// arrive as float64), while the per-component sections decode straight
// into the owning package's config struct.
package runconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"spikelab/internal/episode"
	"spikelab/internal/evolution"
	"spikelab/internal/hebbian"
	"spikelab/internal/ratedgrad"
)

const (
	AlgoHebbian  = "hebbian"
	AlgoRateGrad = "ratedgrad"
)

// Spec is a full run description: which learner, which dataset, how
// episodes are run, and the component configs.
type Spec struct {
	Algo           string
	Dataset        string
	ValidationFrac float64
	Seed           int64
	Store          string
	DBPath         string

	Episode   episode.Config
	Hebbian   hebbian.Config
	RateGrad  ratedgrad.Config
	Evolution evolution.Config
}

// Default returns a spec that trains the three-factor learner on the
// rate-coded XOR task with an in-memory store.
func Default() Spec {
	return Spec{
		Algo:           AlgoHebbian,
		Dataset:        "xor-rate",
		ValidationFrac: 0,
		Seed:           1,
		Store:          "memory",
		DBPath:         "spikelab.db",
		Episode:        episode.Config{WarmupTicks: 10, WindowTicks: 60},
		Hebbian:        hebbian.DefaultConfig(),
		RateGrad:       ratedgrad.DefaultConfig(),
		Evolution:      evolution.DefaultConfig(),
	}
}

// Load reads a JSON run config and merges it over the defaults.
func Load(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("load run config: %w", err)
	}
	return Parse(data)
}

// Parse merges a JSON run config over the defaults.
func Parse(data []byte) (Spec, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Spec{}, fmt.Errorf("parse run config: %w", err)
	}

	spec := Default()
	if v, ok := asString(raw["algo"]); ok {
		spec.Algo = v
	}
	if v, ok := asString(raw["dataset"]); ok {
		spec.Dataset = v
	}
	if v, ok := asFloat64(raw["validation_frac"]); ok {
		spec.ValidationFrac = v
	}
	if v, ok := asString(raw["store"]); ok {
		spec.Store = v
	}
	if v, ok := asString(raw["db_path"]); ok {
		spec.DBPath = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		spec.Seed = v
		spec.Hebbian.Seed = v
		spec.RateGrad.Seed = v
		spec.Evolution.Seed = v
	}

	if err := decodeSection(raw, "episode", &spec.Episode); err != nil {
		return Spec{}, err
	}
	if err := decodeSection(raw, "hebbian", &spec.Hebbian); err != nil {
		return Spec{}, err
	}
	if err := decodeSection(raw, "ratedgrad", &spec.RateGrad); err != nil {
		return Spec{}, err
	}
	if err := decodeSection(raw, "evolution", &spec.Evolution); err != nil {
		return Spec{}, err
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// Validate checks the cross-component fields; per-component configs are
// validated by their own constructors.
func (s Spec) Validate() error {
	switch s.Algo {
	case AlgoHebbian, AlgoRateGrad:
	default:
		return fmt.Errorf("run config: unknown algo %q", s.Algo)
	}
	if s.ValidationFrac < 0 || s.ValidationFrac >= 1 {
		return fmt.Errorf("run config: validation fraction %v outside [0,1)", s.ValidationFrac)
	}
	if s.Dataset == "" {
		return fmt.Errorf("run config: dataset is required")
	}
	return nil
}

// decodeSection re-marshals one sub-object of the raw config into the
// typed destination. Absent keys keep the destination's current values.
func decodeSection(raw map[string]any, key string, dst any) error {
	section, ok := raw[key]
	if !ok {
		return nil
	}
	m, ok := section.(map[string]any)
	if !ok {
		return fmt.Errorf("run config: section %q is not an object", key)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("run config: section %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("run config: section %q: %w", key, err)
	}
	return nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
