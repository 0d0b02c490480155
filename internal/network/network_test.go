package network

import (
	"errors"
	"math"
	"testing"

	"spikelab/internal/neuron"
)

func buildTriplet(t *testing.T) *Network {
	t.Helper()
	nw := New(TopologyPolicy{})
	for _, cfg := range []neuron.Config{
		{ID: "S1", Threshold: 0.5},
		{ID: "H1", Threshold: 0.5},
		{ID: "O1", Threshold: 0.5},
	} {
		if _, err := nw.AddNeuron(cfg); err != nil {
			t.Fatalf("AddNeuron(%s): %v", cfg.ID, err)
		}
	}
	return nw
}

func TestDuplicateNeuronID(t *testing.T) {
	nw := buildTriplet(t)
	if _, err := nw.AddNeuron(neuron.Config{ID: "H1", Threshold: 1}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestPolicyEnforcement(t *testing.T) {
	cases := []struct {
		name    string
		policy  TopologyPolicy
		from    string
		to      string
		allowed bool
	}{
		{"inbound to sensory blocked", TopologyPolicy{}, "H1", "S1", false},
		{"inbound to sensory allowed by flag", TopologyPolicy{AllowInboundToSensory: true}, "H1", "S1", true},
		{"feedback to output blocked", TopologyPolicy{}, "O1", "O1", false},
		{"hidden to output allowed", TopologyPolicy{AllowFeedbackToOutputs: true}, "H1", "O1", true},
		{"self loop blocked", TopologyPolicy{}, "H1", "H1", false},
		{"self loop allowed by flag", TopologyPolicy{AllowSelfLoops: true}, "H1", "H1", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.EdgeAllowed(tc.from, tc.to); got != tc.allowed {
				t.Fatalf("EdgeAllowed(%s,%s) got=%v want=%v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}

func TestConnectRejectsPolicyViolation(t *testing.T) {
	nw := buildTriplet(t)
	if err := nw.Connect("H1", "S1", 1.0); !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy, got %v", err)
	}
	if err := nw.Connect("S1", "X9", 1.0); !errors.Is(err, ErrUnknownNeuron) {
		t.Fatalf("expected ErrUnknownNeuron, got %v", err)
	}
}

func TestStepOrderSensoryFirst(t *testing.T) {
	nw := New(TopologyPolicy{})
	// Hidden registered before sensory; step order must still put S first.
	if _, err := nw.AddNeuron(neuron.Config{ID: "H1", Threshold: 0.5}); err != nil {
		t.Fatalf("AddNeuron: %v", err)
	}
	if _, err := nw.AddNeuron(neuron.Config{ID: "S1", Threshold: 0.5}); err != nil {
		t.Fatalf("AddNeuron: %v", err)
	}
	ids := nw.IDs()
	if ids[0] != "S1" || ids[1] != "H1" {
		t.Fatalf("step order got=%v want=[S1 H1]", ids)
	}
}

func TestInjectAndPropagate(t *testing.T) {
	nw := buildTriplet(t)
	if err := nw.Connect("S1", "H1", 2.0); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := nw.Inject("S1", 1.0); err != nil {
		t.Fatalf("Inject: %v", err)
	}

	nw.Step() // injection promotes to the staging register
	if nw.Neuron("S1").Fired() {
		t.Fatalf("S1 fired a tick early")
	}
	nw.Step() // S1 integrates and fires
	if !nw.Neuron("S1").Fired() {
		t.Fatalf("S1 should fire on tick 2")
	}
	if nw.Neuron("H1").Fired() {
		t.Fatalf("H1 fired a tick early")
	}
	nw.Step() // deposited weight integrates at H1
	if !nw.Neuron("H1").Fired() {
		t.Fatalf("H1 should fire on tick 3, potential=%v", nw.Neuron("H1").Potential)
	}
}

func TestSnapshotRestore(t *testing.T) {
	nw := buildTriplet(t)
	if err := nw.Connect("S1", "H1", 1.5); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := nw.AddEdge("H1", "O1", 0.75); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	snap := nw.Snapshot()

	// Diverge: reweight, drop an edge, add another, nudge parameters.
	nw.Neuron("S1").SetWeight("H1", 9.9)
	nw.Disconnect("H1", "O1")
	nw.Neuron("S1").AddEdge("O1", 3.0)
	nw.Neuron("H1").Threshold = 4.2
	nw.Neuron("H1").Leak = 0.9

	nw.Restore(snap)

	if w, ok := nw.Neuron("S1").Weight("H1"); !ok || math.Abs(w-1.5) > 1e-12 {
		t.Fatalf("restored weight got=(%v,%v) want=(1.5,true)", w, ok)
	}
	if w, ok := nw.Neuron("H1").Weight("O1"); !ok || math.Abs(w-0.75) > 1e-12 {
		t.Fatalf("deleted edge not restored: got=(%v,%v)", w, ok)
	}
	if _, ok := nw.Neuron("S1").Weight("O1"); ok {
		t.Fatalf("extra edge survived restore")
	}
	if nw.Neuron("H1").Threshold != 0.5 || nw.Neuron("H1").Leak != 0 {
		t.Fatalf("parameters not restored: threshold=%v leak=%v",
			nw.Neuron("H1").Threshold, nw.Neuron("H1").Leak)
	}
}

func TestRestoreSkipsUnknownNeurons(t *testing.T) {
	nw := buildTriplet(t)
	snap := nw.Snapshot()
	snap.Neurons = append(snap.Neurons, snap.Neurons[0])
	snap.Neurons[len(snap.Neurons)-1].ID = "H99"
	nw.Restore(snap) // must not panic or error
	if nw.Has("H99") {
		t.Fatalf("restore must not create neurons")
	}
}

func TestCloneIndependence(t *testing.T) {
	nw := buildTriplet(t)
	if err := nw.Connect("S1", "H1", 1.0); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	clone := nw.Clone()
	clone.Neuron("S1").SetWeight("H1", 5.0)
	if w, _ := nw.Neuron("S1").Weight("H1"); w != 1.0 {
		t.Fatalf("clone mutation leaked into original: w=%v", w)
	}
	if clone.NumNeurons() != nw.NumNeurons() || clone.NumEdges() != nw.NumEdges() {
		t.Fatalf("clone shape mismatch: neurons %d/%d edges %d/%d",
			clone.NumNeurons(), nw.NumNeurons(), clone.NumEdges(), nw.NumEdges())
	}
}
