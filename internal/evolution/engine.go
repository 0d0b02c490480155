// Package evolution runs the Lamarckian outer loop: a population of network
// snapshots is inner-trained, ranked by fitness, and reproduced through
// elitism plus Gaussian mutation, with every individual tracked in a
// lineage forest.
package evolution

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"spikelab/internal/dataset"
	"spikelab/internal/model"
	"spikelab/internal/network"
	"spikelab/internal/neuron"
)

// Trainer is the inner learner contract. Both the three-factor and the
// rate-gradient trainers satisfy it.
type Trainer interface {
	TrainEpochs(ctx context.Context, ds dataset.Dataset) ([]model.EpochStats, error)
	Evaluate(ctx context.Context, ds dataset.Dataset) (float64, float64, error)
}

// TrainerFactory builds a trainer bound to the given network. The engine
// derives seed from its own seed, the generation, and the individual index
// so that every inner run is reproducible in isolation.
type TrainerFactory func(nw *network.Network, seed int64, epochs int) (Trainer, error)

// FitnessFunc overrides the built-in weighted fitness when non-nil.
type FitnessFunc func(accuracy, margin float64, edges, baseEdges int) float64

// GenerationStats summarizes one ranked generation.
type GenerationStats struct {
	Generation   int     `json:"generation"`
	BestFitness  float64 `json:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness"`
	BestAccuracy float64 `json:"best_accuracy"`
	BestMargin   float64 `json:"best_margin"`
}

// GenerationCallback observes each generation after ranking.
type GenerationCallback func(gen int, best model.NetSnapshot, stats GenerationStats)

type individual struct {
	snapshot model.NetSnapshot
	nodeID   int
	fitness  float64
	accuracy float64
	margin   float64
	edges    int
}

type Engine struct {
	cfg        Config
	base       *network.Network
	newTrainer TrainerFactory
	fitness    FitnessFunc
	onGen      GenerationCallback
	rng        *rand.Rand
	log        *slog.Logger

	nodes  []model.LineageNode
	nextID int
}

func New(base *network.Network, factory TrainerFactory, cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if base == nil {
		return nil, fmt.Errorf("evolution: nil base network")
	}
	if factory == nil {
		return nil, fmt.Errorf("evolution: nil trainer factory")
	}
	return &Engine{
		cfg:        cfg,
		base:       base,
		newTrainer: factory,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		log:        slog.Default(),
	}, nil
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l *slog.Logger) {
	if l != nil {
		e.log = l
	}
}

// SetFitness installs a custom fitness function.
func (e *Engine) SetFitness(f FitnessFunc) { e.fitness = f }

// SetGenerationCallback installs a per-generation observer.
func (e *Engine) SetGenerationCallback(cb GenerationCallback) { e.onGen = cb }

// Lineage returns the lineage forest accumulated so far.
func (e *Engine) Lineage() []model.LineageNode {
	out := make([]model.LineageNode, len(e.nodes))
	copy(out, e.nodes)
	return out
}

func (e *Engine) newNode(parent, generation int) int {
	id := e.nextID
	e.nextID++
	e.nodes = append(e.nodes, model.LineageNode{ID: id, Parent: parent, Generation: generation})
	return id
}

func (e *Engine) score(acc, margin float64, edges, baseEdges int) float64 {
	if e.fitness != nil {
		return e.fitness(acc, margin, edges, baseEdges)
	}
	sparsity := 0.0
	if baseEdges > 0 {
		sparsity = float64(edges) / float64(baseEdges)
	}
	return e.cfg.WeightAccuracy*acc + e.cfg.WeightMargin*margin - e.cfg.WeightSparsity*sparsity
}

func (e *Engine) mutate(nw *network.Network) {
	if e.cfg.SigmaWeight > 0 {
		nw.EachEdge(func(from string, ed neuron.Edge) {
			nw.Neuron(from).SetWeight(ed.To, ed.Weight+e.rng.NormFloat64()*e.cfg.SigmaWeight)
		})
	}
	if e.cfg.SigmaThreshold == 0 && e.cfg.SigmaLeak == 0 {
		return
	}
	for _, id := range nw.IDs() {
		n := nw.Neuron(id)
		if e.cfg.SigmaThreshold > 0 {
			n.Threshold += e.rng.NormFloat64() * e.cfg.SigmaThreshold
		}
		if e.cfg.SigmaLeak > 0 {
			l := n.Leak + e.rng.NormFloat64()*e.cfg.SigmaLeak
			if l < 0 {
				l = 0
			}
			if l > 1 {
				l = 1
			}
			n.Leak = l
		}
	}
}

// spawn clones the base structure, restores the snapshot, and applies
// mutation when asked.
func (e *Engine) spawn(snap model.NetSnapshot, mutated bool) model.NetSnapshot {
	work := e.base.Clone()
	work.Restore(snap)
	if mutated {
		e.mutate(work)
	}
	return work.Snapshot()
}

// evaluateIndividual trains and scores one population member on its own
// network clone. It fills the individual and its lineage node in place.
func (e *Engine) evaluateIndividual(ctx context.Context, ind *individual, gen, i, baseEdges int, train, validation dataset.Dataset) error {
	work := e.base.Clone()
	work.Restore(ind.snapshot)

	seed := e.cfg.Seed + int64(gen)*1000 + int64(i)
	tr, err := e.newTrainer(work, seed, e.cfg.TrainEpochs)
	if err != nil {
		return fmt.Errorf("generation %d individual %d: %w", gen, i, err)
	}
	if e.cfg.TrainEpochs > 0 && train.Len() > 0 {
		if _, err := tr.TrainEpochs(ctx, train); err != nil {
			return fmt.Errorf("generation %d individual %d: %w", gen, i, err)
		}
	}
	acc, margin, err := tr.Evaluate(ctx, validation)
	if err != nil {
		return fmt.Errorf("generation %d individual %d: %w", gen, i, err)
	}

	ind.accuracy = acc
	ind.margin = margin
	ind.edges = work.NumEdges()
	ind.fitness = e.score(acc, margin, ind.edges, baseEdges)
	if e.cfg.Lamarckian {
		ind.snapshot = work.Snapshot()
	}

	node := &e.nodes[ind.nodeID]
	node.Fitness = ind.fitness
	node.Accuracy = acc
	node.Margin = margin
	node.Edges = ind.edges
	return nil
}

// evaluatePopulation scores a generation, fanning out over a worker pool
// when the config asks for more than one worker.
func (e *Engine) evaluatePopulation(ctx context.Context, pop []*individual, gen, baseEdges int, train, validation dataset.Dataset) error {
	if e.cfg.Workers < 2 {
		for i, ind := range pop {
			if err := e.evaluateIndividual(ctx, ind, gen, i, baseEdges, train, validation); err != nil {
				return err
			}
		}
		return nil
	}

	type job struct {
		idx int
		ind *individual
	}
	type result struct {
		idx int
		err error
	}

	jobs := make(chan job)
	results := make(chan result, len(pop))

	workerCount := e.cfg.Workers
	if workerCount > len(pop) {
		workerCount = len(pop)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				results <- result{idx: j.idx, err: e.evaluateIndividual(ctx, j.ind, gen, j.idx, baseEdges, train, validation)}
			}
		}()
	}

	for i := range pop {
		jobs <- job{idx: i, ind: pop[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	errs := make([]error, len(pop))
	for res := range results {
		errs[res.idx] = res.err
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Run executes the full outer loop and returns the best snapshot seen
// across all generations together with its lineage node.
func (e *Engine) Run(ctx context.Context, train, validation dataset.Dataset) (model.NetSnapshot, model.LineageNode, error) {
	baseEdges := e.base.NumEdges()
	seedSnap := e.base.Snapshot()

	pop := make([]*individual, e.cfg.Population)
	for i := range pop {
		pop[i] = &individual{
			snapshot: e.spawn(seedSnap, i > 0),
			nodeID:   e.newNode(-1, 0),
		}
	}

	var bestEver *individual
	var bestNode model.LineageNode

	for gen := 0; gen < e.cfg.Generations; gen++ {
		select {
		case <-ctx.Done():
			return model.NetSnapshot{}, model.LineageNode{}, ctx.Err()
		default:
		}

		if err := e.evaluatePopulation(ctx, pop, gen, baseEdges, train, validation); err != nil {
			return model.NetSnapshot{}, model.LineageNode{}, err
		}

		ranked := make([]*individual, len(pop))
		copy(ranked, pop)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].fitness > ranked[j].fitness
		})

		best := ranked[0]
		if bestEver == nil || best.fitness > bestEver.fitness {
			clone := *best
			bestEver = &clone
			bestNode = e.nodes[best.nodeID]
		}

		var sum float64
		for _, ind := range ranked {
			sum += ind.fitness
		}
		stats := GenerationStats{
			Generation:   gen,
			BestFitness:  best.fitness,
			MeanFitness:  sum / float64(len(ranked)),
			BestAccuracy: best.accuracy,
			BestMargin:   best.margin,
		}
		e.log.Info("generation ranked",
			"gen", gen,
			"best_fitness", stats.BestFitness,
			"mean_fitness", stats.MeanFitness,
			"best_accuracy", stats.BestAccuracy)
		if e.onGen != nil {
			e.onGen(gen, best.snapshot, stats)
		}

		// Reproduction runs after every generation including the last;
		// the final children are recorded in the lineage but never
		// evaluated.
		next := make([]*individual, 0, e.cfg.Population)
		for i := 0; i < e.cfg.Elites && i < len(ranked); i++ {
			elite := ranked[i]
			next = append(next, &individual{
				snapshot: elite.snapshot,
				nodeID:   e.newNode(elite.nodeID, gen+1),
			})
		}
		pool := e.cfg.ParentPool
		if pool > len(ranked) {
			pool = len(ranked)
		}
		for len(next) < e.cfg.Population {
			parent := ranked[e.rng.Intn(pool)]
			next = append(next, &individual{
				snapshot: e.spawn(parent.snapshot, true),
				nodeID:   e.newNode(parent.nodeID, gen+1),
			})
		}
		pop = next
	}

	if bestEver == nil {
		return seedSnap, model.LineageNode{ID: -1, Parent: -1}, nil
	}
	return bestEver.snapshot, bestNode, nil
}
