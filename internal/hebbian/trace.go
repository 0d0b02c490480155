package hebbian

import (
	"spikelab/internal/network"
	"spikelab/internal/neuron"
)

type edgeKey [2]string

// traceObserver accumulates per-edge eligibility and per-neuron EMA rates
// during one episode. Pre is the source's fired indicator; post is either
// the target's fired indicator or its running rate.
type traceObserver struct {
	decay    float64
	postRate bool
	alpha    float64

	elig  map[edgeKey]float64
	rates map[string]float64
}

func newTraceObserver(cfg Config) *traceObserver {
	return &traceObserver{
		decay:    cfg.TraceDecay,
		postRate: cfg.Post == PostRate,
		alpha:    cfg.RateAlpha,
		elig:     make(map[edgeKey]float64),
		rates:    make(map[string]float64),
	}
}

func (o *traceObserver) ObserveTick(nw *network.Network, tick int) {
	for _, id := range nw.IDs() {
		spike := 0.0
		if nw.Neuron(id).Fired() {
			spike = 1.0
		}
		o.rates[id] = (1-o.alpha)*o.rates[id] + o.alpha*spike
	}

	nw.EachEdge(func(from string, e neuron.Edge) {
		pre := 0.0
		if nw.Neuron(from).Fired() {
			pre = 1.0
		}
		var post float64
		if o.postRate {
			post = o.rates[e.To]
		} else if nw.Neuron(e.To).Fired() {
			post = 1.0
		}
		key := edgeKey{from, e.To}
		o.elig[key] = o.decay*o.elig[key] + pre*post
	})
}
