package network

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"spikelab/internal/neuron"
)

// Recipe is the generative network description parsed from a NEWNET
// header. Layer sizes plus inter-layer densities sample a random network;
// the sampler is seeded so a recipe reproduces the same network for the
// same seed.
type Recipe struct {
	Sensory int
	Hidden  int
	Outputs int
	Pool    bool

	// Densities per directed layer pair.
	DensSH float64
	DensHH float64
	DensHO float64
	DensSO float64

	Init       string // "he" or "xavier"
	ExcitRatio float64
	WeightScale float64

	ThresholdS float64
	ThresholdH float64
	ThresholdO float64
	LeakS      float64
	LeakH      float64
	LeakO      float64

	Seed int64
}

// Pool wiring constants: each output drives the inhibitory pool and the
// pool pushes back harder, implementing a soft winner-take-all.
const (
	poolID         = "HPOOL"
	outputToPoolW  = 20.0
	poolToOutputW  = -25.0
)

func defaultRecipe() Recipe {
	return Recipe{
		DensSH:      0.5,
		DensHH:      0.1,
		DensHO:      0.5,
		DensSO:      0.0,
		Init:        "he",
		ExcitRatio:  0.8,
		WeightScale: 1.0,
		ThresholdS:  1.0,
		ThresholdH:  1.0,
		ThresholdO:  1.0,
		Seed:        1,
	}
}

// ParseRecipe reads a NEWNET header and its option lines:
//
//	NEWNET S=<n> H=<n> O=<n> [POOL=0|1]
//	DENSITY <S->H|H->H|H->O|S->O> <p>
//	INIT he|xavier
//	EXCIT_RATIO <r>
//	W_SCALE <s>
//	THRESHOLDS S <v> H <v> O <v>
//	LEAK S <v> H <v> O <v>
//	SEED <n>
func ParseRecipe(r io.Reader) (Recipe, error) {
	rec := defaultRecipe()
	sawHeader := false

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "NEWNET":
			sawHeader = true
			for _, kv := range fields[1:] {
				key, val, ok := strings.Cut(kv, "=")
				if !ok {
					return rec, fmt.Errorf("line %d: bad NEWNET field %q", lineNo, kv)
				}
				n, err := strconv.Atoi(val)
				if err != nil {
					return rec, fmt.Errorf("line %d: bad NEWNET value %q", lineNo, kv)
				}
				switch key {
				case "S":
					rec.Sensory = n
				case "H":
					rec.Hidden = n
				case "O":
					rec.Outputs = n
				case "POOL", "WTA":
					rec.Pool = n != 0
				default:
					return rec, fmt.Errorf("line %d: unknown NEWNET field %q", lineNo, key)
				}
			}
		case "DENSITY":
			if len(fields) != 3 {
				return rec, fmt.Errorf("line %d: DENSITY needs pair and probability", lineNo)
			}
			p, err := strconv.ParseFloat(fields[2], 64)
			if err != nil || p < 0 || p > 1 {
				return rec, fmt.Errorf("line %d: bad density %q", lineNo, fields[2])
			}
			switch fields[1] {
			case "S->H":
				rec.DensSH = p
			case "H->H":
				rec.DensHH = p
			case "H->O":
				rec.DensHO = p
			case "S->O":
				rec.DensSO = p
			default:
				return rec, fmt.Errorf("line %d: unknown density pair %q", lineNo, fields[1])
			}
		case "INIT":
			if len(fields) != 2 || (fields[1] != "he" && fields[1] != "xavier") {
				return rec, fmt.Errorf("line %d: INIT must be he or xavier", lineNo)
			}
			rec.Init = fields[1]
		case "EXCIT_RATIO":
			if len(fields) != 2 {
				return rec, fmt.Errorf("line %d: EXCIT_RATIO needs a value", lineNo)
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil || v < 0 || v > 1 {
				return rec, fmt.Errorf("line %d: bad excitatory ratio %q", lineNo, fields[1])
			}
			rec.ExcitRatio = v
		case "W_SCALE":
			if len(fields) != 2 {
				return rec, fmt.Errorf("line %d: W_SCALE needs a value", lineNo)
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil || v <= 0 {
				return rec, fmt.Errorf("line %d: bad weight scale %q", lineNo, fields[1])
			}
			rec.WeightScale = v
		case "THRESHOLDS", "LEAK":
			if len(fields) != 7 {
				return rec, fmt.Errorf("line %d: %s needs S <v> H <v> O <v>", lineNo, fields[0])
			}
			vals := map[string]float64{}
			for i := 1; i < 7; i += 2 {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return rec, fmt.Errorf("line %d: bad %s value %q", lineNo, fields[0], fields[i+1])
				}
				vals[fields[i]] = v
			}
			if fields[0] == "THRESHOLDS" {
				rec.ThresholdS, rec.ThresholdH, rec.ThresholdO = vals["S"], vals["H"], vals["O"]
			} else {
				rec.LeakS, rec.LeakH, rec.LeakO = vals["S"], vals["H"], vals["O"]
			}
		case "SEED":
			if len(fields) != 2 {
				return rec, fmt.Errorf("line %d: SEED needs a value", lineNo)
			}
			v, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return rec, fmt.Errorf("line %d: bad seed %q", lineNo, fields[1])
			}
			rec.Seed = v
		default:
			return rec, fmt.Errorf("line %d: unknown directive %q", lineNo, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return rec, err
	}
	if !sawHeader {
		return rec, fmt.Errorf("missing NEWNET header")
	}
	return rec, nil
}

func (r Recipe) validate() error {
	if r.Sensory <= 0 || r.Outputs <= 0 {
		return fmt.Errorf("recipe: need at least one sensory and one output neuron (S=%d O=%d)", r.Sensory, r.Outputs)
	}
	if r.Hidden < 0 {
		return fmt.Errorf("recipe: negative hidden count %d", r.Hidden)
	}
	for _, l := range []float64{r.LeakS, r.LeakH, r.LeakO} {
		if l < 0 || l > 1 {
			return fmt.Errorf("recipe: leak %v outside [0,1]", l)
		}
	}
	return nil
}

// Generate samples a network from the recipe. Edge existence is a Bernoulli
// draw per candidate pair at the layer-pair density; weight magnitudes are
// uniform in [0, limit) where the limit follows the configured init scheme,
// and the sign is flipped negative for the inhibitory fraction.
func (r Recipe) Generate(policy TopologyPolicy) (*Network, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(r.Seed))
	nw := New(policy)

	sids := make([]string, r.Sensory)
	for i := range sids {
		sids[i] = fmt.Sprintf("S%d", i+1)
		if _, err := nw.AddNeuron(neuron.Config{ID: sids[i], Threshold: r.ThresholdS, Leak: r.LeakS}); err != nil {
			return nil, err
		}
	}
	hids := make([]string, r.Hidden)
	for i := range hids {
		hids[i] = fmt.Sprintf("H%d", i+1)
		if _, err := nw.AddNeuron(neuron.Config{ID: hids[i], Threshold: r.ThresholdH, Leak: r.LeakH}); err != nil {
			return nil, err
		}
	}
	oids := make([]string, r.Outputs)
	for i := range oids {
		oids[i] = fmt.Sprintf("O%d", i+1)
		if _, err := nw.AddNeuron(neuron.Config{ID: oids[i], Threshold: r.ThresholdO, Leak: r.LeakO}); err != nil {
			return nil, err
		}
	}

	type pair struct {
		from, to []string
		dens     float64
	}
	pairs := []pair{
		{sids, hids, r.DensSH},
		{hids, hids, r.DensHH},
		{hids, oids, r.DensHO},
		{sids, oids, r.DensSO},
	}

	// Sample structure first so fan-in is known before weights are drawn.
	type sampled struct{ from, to string }
	var edges []sampled
	inDegree := make(map[string]int)
	outDegree := make(map[string]int)
	seen := make(map[[2]string]bool)
	for _, p := range pairs {
		for _, from := range p.from {
			for _, to := range p.to {
				if from == to || seen[[2]string{from, to}] {
					continue
				}
				if rng.Float64() >= p.dens {
					continue
				}
				seen[[2]string{from, to}] = true
				edges = append(edges, sampled{from, to})
				inDegree[to]++
				outDegree[from]++
			}
		}
	}

	for _, e := range edges {
		fan := inDegree[e.to]
		if fan == 0 {
			fan = 1
		}
		var limit float64
		switch r.Init {
		case "xavier":
			fanOut := outDegree[e.from]
			if fanOut == 0 {
				fanOut = 1
			}
			limit = math.Sqrt(6.0/float64(fan+fanOut)) * r.WeightScale
		default: // he
			limit = math.Sqrt(6.0/float64(fan)) * r.WeightScale
		}
		w := rng.Float64() * limit
		if rng.Float64() >= r.ExcitRatio {
			w = -w
		}
		if err := nw.Neuron(e.from).AddEdge(e.to, w); err != nil {
			return nil, err
		}
	}

	if r.Pool {
		if _, err := nw.AddNeuron(neuron.Config{ID: poolID, Threshold: r.ThresholdH, Leak: r.LeakH}); err != nil {
			return nil, err
		}
		pool := nw.Neuron(poolID)
		for _, oid := range oids {
			if err := nw.Neuron(oid).AddEdge(poolID, outputToPoolW); err != nil {
				return nil, err
			}
			if err := pool.AddEdge(oid, poolToOutputW); err != nil {
				return nil, err
			}
		}
	}

	return nw, nil
}
