package dataset

import (
	"testing"
)

func TestXORRateLabels(t *testing.T) {
	d := XORRate()
	if d.Len() != 4 {
		t.Fatalf("sample count got=%d want=4", d.Len())
	}
	want := map[string]string{"00": "O2", "01": "O1", "10": "O1", "11": "O2"}
	for _, s := range d.Samples {
		if got := want[s.Name]; got != s.Target {
			t.Fatalf("sample %s target got=%s want=%s", s.Name, s.Target, got)
		}
	}
}

func TestXORRateTimelines(t *testing.T) {
	d := XORRate()
	var hot, cold Sample
	for _, s := range d.Samples {
		switch s.Name {
		case "11":
			hot = s
		case "00":
			cold = s
		}
	}
	// Hot bits pulse at tick 0 with the strong amplitude.
	evs := hot.Timeline.Current()
	if len(evs) != 2 || evs[0].Amplitude != hotAmplitude {
		t.Fatalf("hot tick-0 events got=%v", evs)
	}
	// Cold bits pulse at tick 0 too, but weakly.
	evs = cold.Timeline.Current()
	if len(evs) != 2 || evs[0].Amplitude != coldAmplitude {
		t.Fatalf("cold tick-0 events got=%v", evs)
	}
	// Tick 1: neither hot (interval 2) nor cold (interval 5) fires.
	hot.Timeline.Advance()
	if evs := hot.Timeline.Current(); len(evs) != 0 {
		t.Fatalf("hot tick-1 events got=%v want none", evs)
	}
}

func TestSplit(t *testing.T) {
	d, err := OneHotPulses(10)
	if err != nil {
		t.Fatalf("OneHotPulses: %v", err)
	}
	train, val, err := d.Split(0.3, 7)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if train.Len() != 7 || val.Len() != 3 {
		t.Fatalf("split sizes got=%d/%d want=7/3", train.Len(), val.Len())
	}

	// Same seed, same partition.
	train2, _, _ := d.Split(0.3, 7)
	for i := range train.Samples {
		if train.Samples[i].Name != train2.Samples[i].Name {
			t.Fatalf("split not deterministic at %d: %s vs %s",
				i, train.Samples[i].Name, train2.Samples[i].Name)
		}
	}

	if _, _, err := d.Split(1.0, 1); err == nil {
		t.Fatalf("fraction 1.0 accepted")
	}
}

func TestByName(t *testing.T) {
	if _, err := ByName("xor-rate"); err != nil {
		t.Fatalf("ByName(xor-rate): %v", err)
	}
	if _, err := ByName("nope"); err == nil {
		t.Fatalf("unknown dataset accepted")
	}
}

func TestByNameOneHot(t *testing.T) {
	d, err := ByName("one-hot-3")
	if err != nil {
		t.Fatalf("ByName(one-hot-3): %v", err)
	}
	if d.Len() != 3 || len(d.Outputs) != 3 {
		t.Fatalf("unexpected dataset: %+v", d)
	}
	if d.Outputs[2] != "O3" {
		t.Fatalf("unexpected outputs: %v", d.Outputs)
	}

	for _, name := range []string{"one-hot-1", "one-hot-", "one-hot-3x", "one-hot-03"} {
		if _, err := ByName(name); err == nil {
			t.Fatalf("malformed name accepted: %s", name)
		}
	}
}
