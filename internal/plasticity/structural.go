// Package plasticity implements the structural and intrinsic update rules
// shared by the trainers: weight pruning, random edge growth, inactive
// neuron pruning, and threshold/leak homeostasis.
package plasticity

import (
	"fmt"
	"math/rand"
	"sort"

	"spikelab/internal/network"
	"spikelab/internal/neuron"
)

// growAttemptFactor bounds the rejection-sampling loop in Grow.
const growAttemptFactor = 20

// PruneBelow removes every edge with |w| < epsilon immediately and returns
// the number removed.
func PruneBelow(nw *network.Network, epsilon float64) int {
	type edge struct{ from, to string }
	var doomed []edge
	nw.EachEdge(func(from string, e neuron.Edge) {
		if abs(e.Weight) < epsilon {
			doomed = append(doomed, edge{from, e.To})
		}
	})
	for _, d := range doomed {
		nw.Disconnect(d.from, d.to)
	}
	return len(doomed)
}

// PatiencePruner removes edges whose magnitude stays under epsilon for
// `patience` consecutive observations. Counters reset when an edge
// recovers or disappears.
type PatiencePruner struct {
	Epsilon  float64
	Patience int

	counters map[[2]string]int
}

func NewPatiencePruner(epsilon float64, patience int) (*PatiencePruner, error) {
	if epsilon < 0 {
		return nil, fmt.Errorf("pruner: negative epsilon %v", epsilon)
	}
	if patience < 1 {
		return nil, fmt.Errorf("pruner: patience must be at least 1, got %d", patience)
	}
	return &PatiencePruner{
		Epsilon:  epsilon,
		Patience: patience,
		counters: make(map[[2]string]int),
	}, nil
}

// Observe advances every edge's counter and prunes the ones that ran out
// of patience. Returns the number pruned.
func (p *PatiencePruner) Observe(nw *network.Network) int {
	live := make(map[[2]string]bool)
	type edge struct{ from, to string }
	var doomed []edge

	nw.EachEdge(func(from string, e neuron.Edge) {
		key := [2]string{from, e.To}
		live[key] = true
		if abs(e.Weight) < p.Epsilon {
			p.counters[key]++
			if p.counters[key] >= p.Patience {
				doomed = append(doomed, edge{from, e.To})
			}
		} else {
			delete(p.counters, key)
		}
	})
	for key := range p.counters {
		if !live[key] {
			delete(p.counters, key)
		}
	}
	for _, d := range doomed {
		nw.Disconnect(d.from, d.to)
		delete(p.counters, [2]string{d.from, d.to})
	}
	return len(doomed)
}

// Grow attempts to add `count` random edges, sampling source and target
// uniformly from the network's neurons and rejecting policy violations and
// existing edges. The initial weight is +/- initWeight with uniform sign.
// The attempt budget is growAttemptFactor times the requested count; the
// loop stops early once exhausted, so a saturated network grows fewer
// edges than asked.
func Grow(rng *rand.Rand, nw *network.Network, count int, initWeight float64) int {
	if count <= 0 {
		return 0
	}
	ids := nw.IDs()
	if len(ids) < 2 {
		return 0
	}
	added := 0
	for attempt := 0; attempt < count*growAttemptFactor && added < count; attempt++ {
		from := ids[rng.Intn(len(ids))]
		to := ids[rng.Intn(len(ids))]
		if !nw.Policy().EdgeAllowed(from, to) {
			continue
		}
		if _, exists := nw.Neuron(from).Weight(to); exists {
			continue
		}
		w := initWeight
		if rng.Intn(2) == 0 {
			w = -w
		}
		if err := nw.Connect(from, to, w); err != nil {
			continue
		}
		added++
	}
	return added
}

// InactivePruner watches per-neuron firing rates and, when a neuron stays
// under the rate threshold for `patience` consecutive observations, prunes
// up to K of its weakest incoming and/or outgoing edges.
type InactivePruner struct {
	RateThreshold float64
	Patience      int
	MaxPrune      int
	Incoming      bool
	Outgoing      bool

	counters map[string]int
}

func NewInactivePruner(threshold float64, patience, maxPrune int, incoming, outgoing bool) (*InactivePruner, error) {
	if patience < 1 {
		return nil, fmt.Errorf("inactive pruner: patience must be at least 1, got %d", patience)
	}
	if maxPrune < 1 {
		return nil, fmt.Errorf("inactive pruner: max prune must be at least 1, got %d", maxPrune)
	}
	return &InactivePruner{
		RateThreshold: threshold,
		Patience:      patience,
		MaxPrune:      maxPrune,
		Incoming:      incoming,
		Outgoing:      outgoing,
		counters:      make(map[string]int),
	}, nil
}

// Observe folds one measurement of per-neuron rates and prunes around
// neurons that ran out of patience. Returns the number of edges removed.
func (p *InactivePruner) Observe(nw *network.Network, rates map[string]float64) int {
	pruned := 0
	for _, id := range nw.IDs() {
		if rates[id] < p.RateThreshold {
			p.counters[id]++
		} else {
			p.counters[id] = 0
			continue
		}
		if p.counters[id] < p.Patience {
			continue
		}
		if p.Outgoing {
			pruned += p.pruneWeakestOutgoing(nw, id)
		}
		if p.Incoming {
			pruned += p.pruneWeakestIncoming(nw, id)
		}
		p.counters[id] = 0
	}
	return pruned
}

type weightedEdge struct {
	from, to string
	mag      float64
}

func (p *InactivePruner) pruneWeakestOutgoing(nw *network.Network, id string) int {
	n := nw.Neuron(id)
	edges := make([]weightedEdge, 0, len(n.Out))
	for _, e := range n.Out {
		edges = append(edges, weightedEdge{id, e.To, abs(e.Weight)})
	}
	return removeWeakest(nw, edges, p.MaxPrune)
}

func (p *InactivePruner) pruneWeakestIncoming(nw *network.Network, id string) int {
	var edges []weightedEdge
	nw.EachEdge(func(from string, e neuron.Edge) {
		if e.To == id {
			edges = append(edges, weightedEdge{from, id, abs(e.Weight)})
		}
	})
	return removeWeakest(nw, edges, p.MaxPrune)
}

func removeWeakest(nw *network.Network, edges []weightedEdge, k int) int {
	sort.Slice(edges, func(i, j int) bool { return edges[i].mag < edges[j].mag })
	if k > len(edges) {
		k = len(edges)
	}
	for i := 0; i < k; i++ {
		nw.Disconnect(edges[i].from, edges[i].to)
	}
	return k
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
