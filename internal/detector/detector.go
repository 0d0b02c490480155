// Package detector tracks output firing rates with an exponential moving
// average and turns them into winner-take-all predictions. It consumes only
// (id, fired) observations and carries no knowledge of neuron internals.
package detector

import (
	"fmt"
	"sort"
)

const (
	DefaultAlpha     = 0.05
	DefaultThreshold = 0.01
)

type Config struct {
	// Alpha is the EMA smoothing factor. Higher responds faster, lower
	// smooths more.
	Alpha float64 `json:"alpha"`
	// Threshold is the minimum winning rate; below it Predict returns the
	// default id.
	Threshold float64 `json:"threshold"`
	// DefaultID is returned when every rate is below Threshold. Empty
	// means abstain.
	DefaultID string `json:"default_id"`
}

type Detector struct {
	cfg   Config
	rates map[string]float64
}

func New(cfg Config) (*Detector, error) {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		return nil, fmt.Errorf("detector: alpha %v outside (0,1]", cfg.Alpha)
	}
	if cfg.Threshold < 0 {
		return nil, fmt.Errorf("detector: negative threshold %v", cfg.Threshold)
	}
	return &Detector{cfg: cfg, rates: make(map[string]float64)}, nil
}

// NewDefault builds a detector with the standard smoothing and threshold.
func NewDefault(defaultID string) *Detector {
	d, err := New(Config{Alpha: DefaultAlpha, Threshold: DefaultThreshold, DefaultID: defaultID})
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Detector) Reset() {
	d.rates = make(map[string]float64)
}

// Observe folds one tick's fired indicator into the id's rate.
func (d *Detector) Observe(id string, fired bool) {
	spike := 0.0
	if fired {
		spike = 1.0
	}
	d.rates[id] = (1-d.cfg.Alpha)*d.rates[id] + d.cfg.Alpha*spike
}

// Rate returns the tracked rate, zero for never-observed ids.
func (d *Detector) Rate(id string) float64 { return d.rates[id] }

// Rates returns a copy of every tracked rate.
func (d *Detector) Rates() map[string]float64 {
	out := make(map[string]float64, len(d.rates))
	for id, r := range d.rates {
		out[id] = r
	}
	return out
}

// Predict returns the id with the highest rate among ids, or the configured
// default when the maximum is below the threshold. Ties resolve to the
// earliest id in the slice.
func (d *Detector) Predict(ids []string) string {
	maxID := ""
	maxRate := -1.0
	for _, id := range ids {
		if r := d.rates[id]; r > maxRate {
			maxRate = r
			maxID = id
		}
	}
	if maxRate < d.cfg.Threshold {
		return d.cfg.DefaultID
	}
	return maxID
}

// Margin returns top1 minus top2 over ids, zero when fewer than two.
func (d *Detector) Margin(ids []string) float64 {
	if len(ids) < 2 {
		return 0
	}
	rates := make([]float64, 0, len(ids))
	for _, id := range ids {
		rates = append(rates, d.rates[id])
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rates)))
	return rates[0] - rates[1]
}
