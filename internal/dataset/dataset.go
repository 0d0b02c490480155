// Package dataset provides labelled episode collections for training and
// validation. A sample pairs an input timeline with the output id the
// network should elect.
package dataset

import (
	"fmt"
	"math/rand"

	"spikelab/internal/timeline"
)

// Sample is one labelled episode.
type Sample struct {
	Name     string
	Timeline timeline.Timeline
	Target   string
}

// Dataset is an ordered collection of samples.
type Dataset struct {
	Name    string
	Samples []Sample
	// Outputs lists the output ids the samples discriminate between.
	Outputs []string
}

func (d Dataset) Len() int { return len(d.Samples) }

// Split partitions the dataset into train and validation parts. The split
// is a seeded shuffle so repeated runs see the same partition.
func (d Dataset) Split(validationFrac float64, seed int64) (train, validation Dataset, err error) {
	if validationFrac < 0 || validationFrac >= 1 {
		return Dataset{}, Dataset{}, fmt.Errorf("dataset split: fraction %v outside [0,1)", validationFrac)
	}
	idx := rand.New(rand.NewSource(seed)).Perm(len(d.Samples))
	nVal := int(float64(len(d.Samples)) * validationFrac)

	train = Dataset{Name: d.Name + "/train", Outputs: d.Outputs}
	validation = Dataset{Name: d.Name + "/validation", Outputs: d.Outputs}
	for i, j := range idx {
		if i < nVal {
			validation.Samples = append(validation.Samples, d.Samples[j])
		} else {
			train.Samples = append(train.Samples, d.Samples[j])
		}
	}
	return train, validation, nil
}

// Shuffled returns a seeded permutation of sample indices.
func (d Dataset) Shuffled(rng *rand.Rand) []int {
	return rng.Perm(len(d.Samples))
}

// Drive amplitudes for the rate-coded builders: a hot bit pulses hard and
// often, a cold bit weakly and rarely.
const (
	hotAmplitude   = 3.0
	hotInterval    = 2
	coldAmplitude  = 0.6
	coldInterval   = 5
)

func bitTimeline(s1Hot, s2Hot bool) timeline.Timeline {
	drive := func(hot bool, tick int) (float64, bool) {
		if hot {
			return hotAmplitude, tick%hotInterval == 0
		}
		return coldAmplitude, tick%coldInterval == 0
	}
	return &timeline.Func{
		At: func(tick int) []timeline.Event {
			var evs []timeline.Event
			if amp, on := drive(s1Hot, tick); on {
				evs = append(evs, timeline.Event{SensorID: "S1", Amplitude: amp})
			}
			if amp, on := drive(s2Hot, tick); on {
				evs = append(evs, timeline.Event{SensorID: "S2", Amplitude: amp})
			}
			return evs
		},
	}
}

// XORRate is the two-sensor rate-coded XOR task: O1 is the target when
// exactly one sensor is hot, O2 otherwise.
func XORRate() Dataset {
	target := func(a, b bool) string {
		if a != b {
			return "O1"
		}
		return "O2"
	}
	var d Dataset
	d.Name = "xor-rate"
	d.Outputs = []string{"O1", "O2"}
	for _, c := range []struct {
		name   string
		s1, s2 bool
	}{
		{"00", false, false},
		{"01", false, true},
		{"10", true, false},
		{"11", true, true},
	} {
		d.Samples = append(d.Samples, Sample{
			Name:     c.name,
			Timeline: bitTimeline(c.s1, c.s2),
			Target:   target(c.s1, c.s2),
		})
	}
	return d
}

// OneHotPulses builds a k-class task where class i drives sensor Si and
// the target is Oi. Useful as a smoke-test dataset for larger nets.
func OneHotPulses(classes int) (Dataset, error) {
	if classes < 2 {
		return Dataset{}, fmt.Errorf("dataset: need at least 2 classes, got %d", classes)
	}
	var d Dataset
	d.Name = fmt.Sprintf("one-hot-%d", classes)
	for i := 1; i <= classes; i++ {
		d.Outputs = append(d.Outputs, fmt.Sprintf("O%d", i))
	}
	for i := 1; i <= classes; i++ {
		sensor := fmt.Sprintf("S%d", i)
		d.Samples = append(d.Samples, Sample{
			Name: sensor,
			Timeline: &timeline.Func{
				At: func(tick int) []timeline.Event {
					if tick%hotInterval == 0 {
						return []timeline.Event{{SensorID: sensor, Amplitude: hotAmplitude}}
					}
					return nil
				},
			},
			Target: fmt.Sprintf("O%d", i),
		})
	}
	return d, nil
}

// ByName looks up a built-in dataset for the CLI. "one-hot-N" names
// build an N-class OneHotPulses task.
func ByName(name string) (Dataset, error) {
	if name == "xor-rate" {
		return XORRate(), nil
	}
	var classes int
	if _, err := fmt.Sscanf(name, "one-hot-%d", &classes); err == nil {
		if fmt.Sprintf("one-hot-%d", classes) == name {
			return OneHotPulses(classes)
		}
	}
	return Dataset{}, fmt.Errorf("dataset: unknown built-in %q", name)
}
