package ratedgrad

import (
	"spikelab/internal/network"
	"spikelab/internal/neuron"
)

type edgeKey [2]string

// rateObserver accumulates per-neuron EMA rates and per-edge eligibility
// during one episode. Eligibility is driven by the presynaptic rate alone;
// the postsynaptic side enters through the surrogate derivative at episode
// end.
type rateObserver struct {
	decay float64
	alpha float64

	elig  map[edgeKey]float64
	rates map[string]float64
}

func newRateObserver(cfg Config) *rateObserver {
	return &rateObserver{
		decay: cfg.TraceDecay,
		alpha: cfg.RateAlpha,
		elig:  make(map[edgeKey]float64),
		rates: make(map[string]float64),
	}
}

func (o *rateObserver) ObserveTick(nw *network.Network, tick int) {
	for _, id := range nw.IDs() {
		spike := 0.0
		if nw.Neuron(id).Fired() {
			spike = 1.0
		}
		o.rates[id] = (1-o.alpha)*o.rates[id] + o.alpha*spike
	}

	nw.EachEdge(func(from string, e neuron.Edge) {
		key := edgeKey{from, e.To}
		o.elig[key] = o.decay*o.elig[key] + o.rates[from]
	})
}
