package network

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"spikelab/internal/model"
	"spikelab/internal/neuron"
)

var (
	ErrUnknownNeuron = errors.New("unknown neuron")
	ErrDuplicateID   = errors.New("duplicate neuron id")
	ErrPolicy        = errors.New("edge forbidden by topology policy")
)

// Network holds a population of neurons and steps them in a fixed order:
// sensory sources first, then the remainder, each in insertion order. The
// ordering plus the one-tick on-deck delay makes Step a pure function of
// the tick's injected events.
type Network struct {
	byID    map[string]*neuron.Neuron
	sensory []*neuron.Neuron
	rest    []*neuron.Neuron

	policy        TopologyPolicy
	defaultOutput string

	log *slog.Logger
}

func New(policy TopologyPolicy) *Network {
	return &Network{
		byID:   make(map[string]*neuron.Neuron),
		policy: policy,
		log:    slog.Default(),
	}
}

// SetLogger replaces the logger used for restore warnings.
func (nw *Network) SetLogger(l *slog.Logger) {
	if l != nil {
		nw.log = l
	}
}

func (nw *Network) Policy() TopologyPolicy { return nw.policy }

// DefaultOutput is the detector fallback id declared by a network file.
// Empty means abstain.
func (nw *Network) DefaultOutput() string     { return nw.defaultOutput }
func (nw *Network) SetDefaultOutput(id string) { nw.defaultOutput = id }

// AddNeuron creates and registers a neuron from its config.
func (nw *Network) AddNeuron(cfg neuron.Config) (*neuron.Neuron, error) {
	if _, exists := nw.byID[cfg.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, cfg.ID)
	}
	n, err := neuron.New(cfg)
	if err != nil {
		return nil, err
	}
	nw.byID[n.ID] = n
	if RoleOf(n.ID) == RoleSensory {
		nw.sensory = append(nw.sensory, n)
	} else {
		nw.rest = append(nw.rest, n)
	}
	return n, nil
}

// Neuron returns the neuron with the given id, or nil.
func (nw *Network) Neuron(id string) *neuron.Neuron { return nw.byID[id] }

func (nw *Network) Has(id string) bool {
	_, ok := nw.byID[id]
	return ok
}

func (nw *Network) NumNeurons() int { return len(nw.byID) }

// IDs returns all neuron ids in step order.
func (nw *Network) IDs() []string {
	ids := make([]string, 0, len(nw.byID))
	for _, n := range nw.sensory {
		ids = append(ids, n.ID)
	}
	for _, n := range nw.rest {
		ids = append(ids, n.ID)
	}
	return ids
}

// OutputIDs returns the ids of output neurons in step order.
func (nw *Network) OutputIDs() []string {
	var ids []string
	for _, n := range nw.rest {
		if RoleOf(n.ID) == RoleOutput {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// SensoryIDs returns the ids of sensory neurons in step order.
func (nw *Network) SensoryIDs() []string {
	ids := make([]string, 0, len(nw.sensory))
	for _, n := range nw.sensory {
		ids = append(ids, n.ID)
	}
	return ids
}

// AddEdge wires from -> to without consulting the topology policy. The
// policy constrains edges grown during training; declared and restored
// structure is taken as-is.
func (nw *Network) AddEdge(from, to string, weight float64) error {
	src, ok := nw.byID[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNeuron, from)
	}
	if _, ok := nw.byID[to]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNeuron, to)
	}
	return src.AddEdge(to, weight)
}

// Connect adds a policy-checked edge from -> to.
func (nw *Network) Connect(from, to string, weight float64) error {
	src, ok := nw.byID[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNeuron, from)
	}
	if _, ok := nw.byID[to]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNeuron, to)
	}
	if !nw.policy.EdgeAllowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrPolicy, from, to)
	}
	return src.AddEdge(to, weight)
}

// Disconnect removes the edge from -> to if present.
func (nw *Network) Disconnect(from, to string) bool {
	src, ok := nw.byID[from]
	if !ok {
		return false
	}
	return src.RemoveEdge(to)
}

// Inject adds raw current to a sensory neuron's on-deck register. It is the
// privileged entry point for external input and shares the synaptic
// one-tick delay.
func (nw *Network) Inject(id string, amount float64) error {
	n, ok := nw.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNeuron, id)
	}
	n.Receive(amount)
	return nil
}

// Step advances every neuron one tick, sensory first.
func (nw *Network) Step() {
	resolve := func(id string) *neuron.Neuron { return nw.byID[id] }
	for _, n := range nw.sensory {
		n.Tick(resolve)
	}
	for _, n := range nw.rest {
		n.Tick(resolve)
	}
}

// ResetState returns every neuron to rest without touching structure.
func (nw *Network) ResetState() {
	for _, n := range nw.sensory {
		n.ResetState()
	}
	for _, n := range nw.rest {
		n.ResetState()
	}
}

// NumEdges counts all edges.
func (nw *Network) NumEdges() int {
	total := 0
	for _, n := range nw.sensory {
		total += len(n.Out)
	}
	for _, n := range nw.rest {
		total += len(n.Out)
	}
	return total
}

// EachEdge visits every edge in step order.
func (nw *Network) EachEdge(fn func(from string, e neuron.Edge)) {
	for _, n := range nw.sensory {
		for _, e := range n.Out {
			fn(n.ID, e)
		}
	}
	for _, n := range nw.rest {
		for _, e := range n.Out {
			fn(n.ID, e)
		}
	}
}

// Snapshot captures all neuron parameters and edges.
func (nw *Network) Snapshot() model.NetSnapshot {
	var snap model.NetSnapshot
	all := make([]*neuron.Neuron, 0, len(nw.byID))
	all = append(all, nw.sensory...)
	all = append(all, nw.rest...)
	for _, n := range all {
		snap.Neurons = append(snap.Neurons, model.NeuronRecord{
			ID:         n.ID,
			Threshold:  n.Threshold,
			Leak:       n.Leak,
			Resting:    n.Resting,
			Refractory: n.RefractoryTicks,
		})
		for _, e := range n.Out {
			snap.Edges = append(snap.Edges, model.EdgeRecord{From: n.ID, To: e.To, Weight: e.Weight})
		}
	}
	return snap
}

// Restore applies a snapshot to the existing neuron population: edges not
// in the snapshot are deleted, missing edges added, weights and thresholds
// and leaks set per record. Records naming unknown neurons are skipped with
// a warning so a partially matching snapshot still restores what it can.
func (nw *Network) Restore(snap model.NetSnapshot) {
	keep := make(map[string]map[string]float64, len(snap.Neurons))
	for _, e := range snap.Edges {
		m := keep[e.From]
		if m == nil {
			m = make(map[string]float64)
			keep[e.From] = m
		}
		m[e.To] = e.Weight
	}

	for _, rec := range snap.Neurons {
		n, ok := nw.byID[rec.ID]
		if !ok {
			nw.log.Warn("snapshot restore: skipping unknown neuron", "id", rec.ID)
			continue
		}
		n.Threshold = rec.Threshold
		n.Leak = rec.Leak
		n.Resting = rec.Resting
		n.RefractoryTicks = rec.Refractory

		wanted := keep[rec.ID]
		for i := len(n.Out) - 1; i >= 0; i-- {
			if _, ok := wanted[n.Out[i].To]; !ok {
				n.RemoveEdge(n.Out[i].To)
			}
		}
		targets := maps.Keys(wanted)
		slices.Sort(targets)
		for _, to := range targets {
			w := wanted[to]
			if _, ok := nw.byID[to]; !ok {
				nw.log.Warn("snapshot restore: skipping edge to unknown neuron", "from", rec.ID, "to", to)
				continue
			}
			if _, have := n.Weight(to); have {
				n.SetWeight(to, w)
			} else {
				n.AddEdge(to, w)
			}
		}
	}
}

// FromSnapshot builds a fresh network from a snapshot.
func FromSnapshot(snap model.NetSnapshot, policy TopologyPolicy) (*Network, error) {
	nw := New(policy)
	for _, rec := range snap.Neurons {
		_, err := nw.AddNeuron(neuron.Config{
			ID:         rec.ID,
			Threshold:  rec.Threshold,
			Leak:       rec.Leak,
			Resting:    rec.Resting,
			Refractory: rec.Refractory,
		})
		if err != nil {
			return nil, fmt.Errorf("snapshot neuron %s: %w", rec.ID, err)
		}
	}
	for _, e := range snap.Edges {
		src := nw.byID[e.From]
		if src == nil {
			return nil, fmt.Errorf("snapshot edge %s -> %s: %w", e.From, e.To, ErrUnknownNeuron)
		}
		if _, ok := nw.byID[e.To]; !ok {
			return nil, fmt.Errorf("snapshot edge %s -> %s: %w", e.From, e.To, ErrUnknownNeuron)
		}
		if err := src.AddEdge(e.To, e.Weight); err != nil {
			return nil, err
		}
	}
	return nw, nil
}

// Clone builds an independent copy with the same structure and parameters.
func (nw *Network) Clone() *Network {
	clone, err := FromSnapshot(nw.Snapshot(), nw.policy)
	if err != nil {
		// Snapshot of a valid network always reconstructs.
		panic(fmt.Sprintf("network clone: %v", err))
	}
	clone.defaultOutput = nw.defaultOutput
	clone.log = nw.log
	return clone
}
