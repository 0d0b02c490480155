// Package episode drives a network through warm-up and decision windows
// and aggregates the metrics trainers consume.
package episode

import (
	"fmt"

	"spikelab/internal/detector"
	"spikelab/internal/model"
	"spikelab/internal/network"
	"spikelab/internal/timeline"
)

type Config struct {
	// WarmupTicks run before the decision window. Warm-up ticks are
	// processed exactly like window ticks (detector and fire counts
	// included); the split only sets the episode length.
	WarmupTicks int `json:"warmup_ticks"`
	// WindowTicks is the decision window length.
	WindowTicks int `json:"window_ticks"`
}

func (c Config) validate() error {
	if c.WarmupTicks < 0 {
		return fmt.Errorf("episode: negative warmup %d", c.WarmupTicks)
	}
	if c.WindowTicks <= 0 {
		return fmt.Errorf("episode: window must be positive, got %d", c.WindowTicks)
	}
	return nil
}

// TickObserver receives per-tick firing activity during an episode.
// Trainers register one to accumulate eligibility traces.
type TickObserver interface {
	ObserveTick(nw *network.Network, tick int)
}

// Runner executes episodes against a network.
type Runner struct {
	cfg Config
}

func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg}, nil
}

func (r *Runner) Config() Config { return r.cfg }

// Run executes one episode: reset detector and network dynamics, then for
// each tick inject the timeline's events, step the network, feed the
// detector every output's fired flag, and notify observers. The returned
// metrics reflect rates at the end of the full run.
func (r *Runner) Run(nw *network.Network, tl timeline.Timeline, det *detector.Detector, observers ...TickObserver) (model.EpisodeMetrics, error) {
	det.Reset()
	nw.ResetState()
	tl.Reset()

	outputs := nw.OutputIDs()
	fireCounts := make(map[string]int, nw.NumNeurons())
	total := r.cfg.WarmupTicks + r.cfg.WindowTicks

	for tick := 0; tick < total; tick++ {
		for _, ev := range tl.Current() {
			if err := nw.Inject(ev.SensorID, ev.Amplitude); err != nil {
				return model.EpisodeMetrics{}, fmt.Errorf("tick %d: %w", tick, err)
			}
		}
		tl.Advance()

		nw.Step()

		for _, id := range nw.IDs() {
			if nw.Neuron(id).Fired() {
				fireCounts[id]++
			}
		}
		for _, id := range outputs {
			det.Observe(id, nw.Neuron(id).Fired())
		}
		for _, obs := range observers {
			obs.ObserveTick(nw, tick)
		}
	}

	return model.EpisodeMetrics{
		Winner:     det.Predict(outputs),
		Margin:     det.Margin(outputs),
		Rates:      det.Rates(),
		FireCounts: fireCounts,
		Ticks:      total,
	}, nil
}
