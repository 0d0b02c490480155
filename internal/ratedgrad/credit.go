package ratedgrad

import (
	"math"
	"sort"

	"spikelab/internal/network"
	"spikelab/internal/neuron"
)

// surrogateClamp keeps rates away from the flat ends of r(1-r) so that
// silent or saturated neurons still pass some gradient.
const surrogateClamp = 0.05

func surrogate(rate float64) float64 {
	r := clamp(rate, surrogateClamp, 1-surrogateClamp)
	return r * (1 - r)
}

// distancesFromOutputs runs a BFS over the reversed edge set starting at
// the output neurons. Neurons unreachable from any output are absent from
// the result and receive no credit.
func distancesFromOutputs(nw *network.Network) map[string]int {
	incoming := make(map[string][]string)
	nw.EachEdge(func(from string, e neuron.Edge) {
		incoming[e.To] = append(incoming[e.To], from)
	})

	dist := make(map[string]int)
	queue := nw.OutputIDs()
	for _, id := range queue {
		dist[id] = 0
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, src := range incoming[id] {
			if _, seen := dist[src]; !seen {
				dist[src] = dist[id] + 1
				queue = append(queue, src)
			}
		}
	}
	return dist
}

// outputGradient computes the tempered softmax cross-entropy gradient over
// the output rates.
func outputGradient(rates map[string]float64, outputs []string, target string, temperature float64) map[string]float64 {
	maxLogit := math.Inf(-1)
	for _, id := range outputs {
		if l := rates[id] / temperature; l > maxLogit {
			maxLogit = l
		}
	}
	var sum float64
	exps := make(map[string]float64, len(outputs))
	for _, id := range outputs {
		e := math.Exp(rates[id]/temperature - maxLogit)
		exps[id] = e
		sum += e
	}

	g := make(map[string]float64, len(outputs))
	for _, id := range outputs {
		p := exps[id] / sum
		if id == target {
			p -= 1
		}
		g[id] = p / temperature
	}
	return g
}

// episodeGradient backpropagates the output error through the assumed
// feed-forward structure: node errors flow along edges whose target sits
// strictly closer to the outputs, and each edge's gradient couples the
// target's error and surrogate with the source's eligibility trace.
func episodeGradient(nw *network.Network, obs *rateObserver, target string, temperature float64) map[edgeKey]float64 {
	g := outputGradient(obs.rates, nw.OutputIDs(), target, temperature)
	dist := distancesFromOutputs(nw)

	type node struct {
		id string
		d  int
	}
	nodes := make([]node, 0, len(dist))
	for id, d := range dist {
		if d > 0 {
			nodes = append(nodes, node{id: id, d: d})
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].d != nodes[j].d {
			return nodes[i].d < nodes[j].d
		}
		return nodes[i].id < nodes[j].id
	})

	for _, n := range nodes {
		var acc float64
		for _, e := range nw.Neuron(n.id).Out {
			dk, reachable := dist[e.To]
			if !reachable || dk >= n.d {
				continue
			}
			acc += e.Weight * surrogate(obs.rates[e.To]) * g[e.To]
		}
		g[n.id] = acc
	}

	grads := make(map[edgeKey]float64)
	nw.EachEdge(func(from string, e neuron.Edge) {
		gt, ok := g[e.To]
		if !ok {
			return
		}
		key := edgeKey{from, e.To}
		grads[key] = gt * surrogate(obs.rates[e.To]) * obs.elig[key]
	})
	return grads
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
