package neuron

import (
	"math"
	"testing"
)

func mustNew(t *testing.T, cfg Config) *Neuron {
	t.Helper()
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New(%+v): %v", cfg, err)
	}
	return n
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"empty id", Config{Threshold: 1}},
		{"leak below range", Config{ID: "H1", Leak: -0.1}},
		{"leak above range", Config{ID: "H1", Leak: 1.1}},
		{"negative refractory", Config{ID: "H1", Refractory: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Fatalf("New(%+v): expected error", tc.cfg)
			}
		})
	}
}

func TestOneTickDelay(t *testing.T) {
	a := mustNew(t, Config{ID: "H1", Threshold: 0.5})
	b := mustNew(t, Config{ID: "H2", Threshold: 10})
	if err := a.AddEdge("H2", 2.0); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	byID := map[string]*Neuron{"H1": a, "H2": b}
	resolve := func(id string) *Neuron { return byID[id] }

	a.Receive(1.0)

	// Tick 1: the injected charge moves on deck -> staged, nothing integrates.
	a.Tick(resolve)
	b.Tick(resolve)
	if a.Fired() || a.Potential != 0 {
		t.Fatalf("tick 1: source integrated too early, potential=%v", a.Potential)
	}

	// Tick 2: the source integrates and fires; its deposit is still in flight.
	a.Tick(resolve)
	b.Tick(resolve)
	if !a.Fired() {
		t.Fatalf("tick 2: source did not fire, potential=%v", a.Potential)
	}
	if b.Potential != 0 {
		t.Fatalf("tick 2: target integrated too early, potential=%v", b.Potential)
	}

	// Tick 3: the deposited weight arrives, one tick after the spike.
	a.Tick(resolve)
	b.Tick(resolve)
	if got, want := b.Potential, 2.0; math.Abs(got-want) > 1e-12 {
		t.Fatalf("tick 3: target potential got=%v want=%v", got, want)
	}
}

func TestLeakAndClamp(t *testing.T) {
	null := func(string) *Neuron { return nil }
	t.Run("memoryless at leak zero", func(t *testing.T) {
		n := mustNew(t, Config{ID: "H1", Threshold: 100, Leak: 0})
		n.Receive(3)
		n.Tick(null)
		n.Tick(null)
		if got, want := n.Potential, 3.0; math.Abs(got-want) > 1e-12 {
			t.Fatalf("staged charge not integrated: potential=%v", n.Potential)
		}
		n.Tick(null)
		if n.Potential != 0 {
			t.Fatalf("leak=0 should forget: potential=%v", n.Potential)
		}
	})
	t.Run("pure integrator at leak one", func(t *testing.T) {
		n := mustNew(t, Config{ID: "H1", Threshold: 100, Leak: 1})
		n.Receive(3)
		n.Tick(null)
		n.Receive(2)
		n.Tick(null)
		n.Tick(null)
		if got, want := n.Potential, 5.0; math.Abs(got-want) > 1e-12 {
			t.Fatalf("leak=1 potential got=%v want=%v", got, want)
		}
	})
	t.Run("negative drive clamps to zero", func(t *testing.T) {
		n := mustNew(t, Config{ID: "H1", Threshold: 100, Leak: 1})
		n.Receive(-4)
		n.Tick(null)
		n.Tick(null)
		if n.Potential != 0 {
			t.Fatalf("potential should clamp at 0, got %v", n.Potential)
		}
	})
}

func TestFireResetsToResting(t *testing.T) {
	n := mustNew(t, Config{ID: "O1", Threshold: 1, Resting: 0.25})
	n.Receive(5)
	n.Tick(func(string) *Neuron { return nil })
	n.Tick(func(string) *Neuron { return nil })
	if !n.Fired() {
		t.Fatalf("expected fire, potential=%v", n.Potential)
	}
	if got, want := n.Potential, 0.25; math.Abs(got-want) > 1e-12 {
		t.Fatalf("post-fire potential got=%v want=%v", got, want)
	}
}

func TestRefractoryCountdown(t *testing.T) {
	n := mustNew(t, Config{ID: "H1", Threshold: 0.5, Refractory: 2})
	null := func(string) *Neuron { return nil }

	n.Receive(2)
	n.Tick(null) // charge promotes to the staging register
	n.Tick(null) // integrates, fires, arms countdown
	if !n.Fired() {
		t.Fatalf("expected fire, potential=%v", n.Potential)
	}

	n.Receive(5)
	n.Tick(null)
	if n.Fired() || n.Potential != 0 {
		t.Fatalf("refractory tick 1: fired=%v potential=%v", n.Fired(), n.Potential)
	}
	n.Receive(5)
	n.Tick(null)
	if n.Fired() {
		t.Fatalf("refractory tick 2: should still be silent")
	}

	// Countdown exhausted, integration resumes.
	n.Receive(5)
	n.Tick(null)
	if !n.Fired() {
		t.Fatalf("post-refractory: expected fire, potential=%v", n.Potential)
	}
}

func TestEdgeOps(t *testing.T) {
	n := mustNew(t, Config{ID: "H1", Threshold: 1})
	if err := n.AddEdge("H2", 0.5); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := n.AddEdge("H2", 0.7); err == nil {
		t.Fatalf("duplicate AddEdge should fail")
	}
	if err := n.SetWeight("H2", -0.25); err != nil {
		t.Fatalf("SetWeight: %v", err)
	}
	if w, ok := n.Weight("H2"); !ok || w != -0.25 {
		t.Fatalf("Weight got=(%v,%v) want=(-0.25,true)", w, ok)
	}
	if err := n.SetWeight("H9", 1); err == nil {
		t.Fatalf("SetWeight on missing edge should fail")
	}
	if !n.RemoveEdge("H2") {
		t.Fatalf("RemoveEdge returned false")
	}
	if n.RemoveEdge("H2") {
		t.Fatalf("second RemoveEdge should return false")
	}
}
