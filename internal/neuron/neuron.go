package neuron

import "fmt"

// Edge is one outgoing connection. Targets are resolved by id at step time
// so that edges survive snapshot restore without pointer fixups.
type Edge struct {
	To     string
	Weight float64
}

// Neuron is a discrete-time leaky integrate-and-fire unit. Incoming charge
// lands in onDeck, is promoted to delta at the end of the receiving tick,
// and integrates on the tick after, so a spike emitted at tick t raises the
// target's potential at t+1, never at t.
type Neuron struct {
	ID        string
	Potential float64
	Threshold float64
	Leak      float64
	Resting   float64

	RefractoryTicks int // countdown arming value; zero disables refractory

	countdown int
	fired     bool
	delta     float64
	onDeck    float64

	Out []Edge
}

// Config declares one neuron. Zero-value Leak and Resting are valid.
type Config struct {
	ID         string
	Threshold  float64
	Leak       float64
	Resting    float64
	Refractory int
}

func New(cfg Config) (*Neuron, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("neuron config: empty id")
	}
	if cfg.Leak < 0 || cfg.Leak > 1 {
		return nil, fmt.Errorf("neuron %s: leak %v outside [0,1]", cfg.ID, cfg.Leak)
	}
	if cfg.Refractory < 0 {
		return nil, fmt.Errorf("neuron %s: negative refractory %d", cfg.ID, cfg.Refractory)
	}
	return &Neuron{
		ID:              cfg.ID,
		Potential:       cfg.Resting,
		Threshold:       cfg.Threshold,
		Leak:            cfg.Leak,
		Resting:         cfg.Resting,
		RefractoryTicks: cfg.Refractory,
	}, nil
}

// Receive adds charge to the on-deck register. It is used both for synaptic
// deposits from firing neurons and for privileged sensory injection, so both
// experience the same one-tick delay.
func (n *Neuron) Receive(amount float64) {
	n.onDeck += amount
}

// Fired reports whether the neuron fired during the most recent tick.
func (n *Neuron) Fired() bool { return n.fired }

// Tick advances the neuron one timestep. Integration consumes the charge
// staged on the previous tick; this tick's on-deck charge is promoted for
// the next one. resolve maps a target id to its neuron; deposits go to the
// target's on-deck register.
func (n *Neuron) Tick(resolve func(id string) *Neuron) {
	n.fired = false
	incoming := n.delta
	n.delta = n.onDeck
	n.onDeck = 0

	if n.countdown > 0 {
		n.countdown--
		return
	}

	n.Potential = n.Leak*n.Potential + incoming
	if n.Potential < 0 {
		n.Potential = 0
	}

	if n.Potential > n.Threshold {
		n.fire(resolve)
	}
}

func (n *Neuron) fire(resolve func(id string) *Neuron) {
	n.fired = true
	n.Potential = n.Resting
	if n.RefractoryTicks > 0 {
		n.countdown = n.RefractoryTicks
	}
	for _, e := range n.Out {
		if target := resolve(e.To); target != nil {
			target.Receive(e.Weight)
		}
	}
}

// AddEdge appends an outgoing edge. Duplicate targets are rejected; policy
// checks live a level up in the network.
func (n *Neuron) AddEdge(to string, weight float64) error {
	for _, e := range n.Out {
		if e.To == to {
			return fmt.Errorf("neuron %s: duplicate edge to %s", n.ID, to)
		}
	}
	n.Out = append(n.Out, Edge{To: to, Weight: weight})
	return nil
}

// SetWeight updates the weight of the edge to the given target.
func (n *Neuron) SetWeight(to string, weight float64) error {
	for i := range n.Out {
		if n.Out[i].To == to {
			n.Out[i].Weight = weight
			return nil
		}
	}
	return fmt.Errorf("neuron %s: no edge to %s", n.ID, to)
}

// RemoveEdge deletes the edge to the given target, preserving order of the
// remaining edges.
func (n *Neuron) RemoveEdge(to string) bool {
	for i := range n.Out {
		if n.Out[i].To == to {
			n.Out = append(n.Out[:i], n.Out[i+1:]...)
			return true
		}
	}
	return false
}

// Weight returns the weight of the edge to the given target.
func (n *Neuron) Weight(to string) (float64, bool) {
	for _, e := range n.Out {
		if e.To == to {
			return e.Weight, true
		}
	}
	return 0, false
}

// ResetState clears runtime dynamics back to rest without touching
// parameters or edges.
func (n *Neuron) ResetState() {
	n.Potential = n.Resting
	n.countdown = 0
	n.fired = false
	n.delta = 0
	n.onDeck = 0
}
