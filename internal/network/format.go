package network

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"spikelab/internal/neuron"
)

// Load parses the declarative network format:
//
//	NEURON <id> <threshold> [leak] [resting]
//	CONNECTION <from> <to> <weight>
//	DEFAULT_OUTPUT <id>
//
// Lines starting with # and blank lines are ignored. A NEWNET header hands
// off to the generative parser.
func Load(r io.Reader, policy TopologyPolicy) (*Network, error) {
	br := bufio.NewReader(r)
	first, err := peekFirstToken(br)
	if err != nil {
		return nil, err
	}
	if first == "NEWNET" {
		spec, err := ParseRecipe(br)
		if err != nil {
			return nil, err
		}
		return spec.Generate(policy)
	}
	return loadDeclarations(br, policy)
}

func peekFirstToken(br *bufio.Reader) (string, error) {
	const peekWindow = 4096
	buf, err := br.Peek(peekWindow)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", err
	}
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			return fields[0], nil
		}
	}
	return "", nil
}

func loadDeclarations(r io.Reader, policy TopologyPolicy) (*Network, error) {
	nw := New(policy)
	type pendingEdge struct {
		from, to string
		weight   float64
		line     int
	}
	var edges []pendingEdge

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
		case "NEURON":
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: NEURON needs id and threshold", lineNo)
			}
			cfg := neuron.Config{ID: fields[1]}
			th, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad threshold %q", lineNo, fields[2])
			}
			cfg.Threshold = th
			if len(fields) > 3 {
				v, err := strconv.ParseFloat(fields[3], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad leak %q", lineNo, fields[3])
				}
				cfg.Leak = v
			}
			if len(fields) > 4 {
				v, err := strconv.ParseFloat(fields[4], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad resting %q", lineNo, fields[4])
				}
				cfg.Resting = v
			}
			if _, err := nw.AddNeuron(cfg); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case "CONNECTION":
			if len(fields) != 4 {
				return nil, fmt.Errorf("line %d: CONNECTION needs from, to, weight", lineNo)
			}
			w, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad weight %q", lineNo, fields[3])
			}
			edges = append(edges, pendingEdge{from: fields[1], to: fields[2], weight: w, line: lineNo})
		case "DEFAULT_OUTPUT":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: DEFAULT_OUTPUT needs an id", lineNo)
			}
			nw.SetDefaultOutput(fields[1])
		default:
			return nil, fmt.Errorf("line %d: unknown directive %q", lineNo, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	// Edges connect after all declarations so forward references work.
	// Declared structure bypasses the topology policy, which only governs
	// edges grown during training.
	for _, e := range edges {
		if err := nw.AddEdge(e.from, e.to, e.weight); err != nil {
			return nil, fmt.Errorf("line %d: %w", e.line, err)
		}
	}
	return nw, nil
}

// Save writes the network back out in the declarative format, loadable by
// Load.
func Save(w io.Writer, nw *Network) error {
	bw := bufio.NewWriter(w)
	for _, id := range nw.IDs() {
		n := nw.Neuron(id)
		if _, err := fmt.Fprintf(bw, "NEURON %s %g %g %g\n", n.ID, n.Threshold, n.Leak, n.Resting); err != nil {
			return err
		}
	}
	if nw.DefaultOutput() != "" {
		if _, err := fmt.Fprintf(bw, "DEFAULT_OUTPUT %s\n", nw.DefaultOutput()); err != nil {
			return err
		}
	}
	var werr error
	nw.EachEdge(func(from string, e neuron.Edge) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(bw, "CONNECTION %s %s %g\n", from, e.To, e.Weight)
	})
	if werr != nil {
		return werr
	}
	return bw.Flush()
}
