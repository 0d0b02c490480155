// Package ratedgrad implements the rate-based gradient learner: episode
// firing rates feed a tempered softmax loss whose error is propagated
// backwards through the feed-forward structure and applied per edge via
// SGD, Adam, or AdamW.
package ratedgrad

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"spikelab/internal/checkpoint"
	"spikelab/internal/dataset"
	"spikelab/internal/detector"
	"spikelab/internal/episode"
	"spikelab/internal/model"
	"spikelab/internal/network"
	"spikelab/internal/plasticity"
)

type Trainer struct {
	cfg    Config
	net    *network.Network
	runner *episode.Runner
	det    *detector.Detector
	opt    *optimizer
	rng    *rand.Rand
	log    *slog.Logger

	ladder  *checkpoint.Ladder
	history []float64
}

func New(nw *network.Network, epCfg episode.Config, cfg Config) (*Trainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	runner, err := episode.NewRunner(epCfg)
	if err != nil {
		return nil, err
	}
	// Threshold zero makes the winner a raw argmax; the gradient's softmax
	// handles uncertainty, so abstention has no role here.
	det, err := detector.New(detector.Config{Alpha: cfg.RateAlpha, Threshold: 0})
	if err != nil {
		return nil, err
	}
	t := &Trainer{
		cfg:    cfg,
		net:    nw,
		runner: runner,
		det:    det,
		opt:    newOptimizer(cfg),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		log:    slog.Default(),
	}
	if cfg.CheckpointEnable {
		t.ladder, err = checkpoint.NewLadder(cfg.LadderCaps)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// SetLogger replaces the trainer's logger.
func (t *Trainer) SetLogger(l *slog.Logger) {
	if l != nil {
		t.log = l
	}
}

// Network returns the network the trainer mutates.
func (t *Trainer) Network() *network.Network { return t.net }

type batchStats struct {
	correct  int
	margin   float64
	episodes int
}

func (t *Trainer) trainBatch(samples []dataset.Sample) (batchStats, error) {
	var stats batchStats
	grads := make(map[edgeKey]float64)
	rateSums := make(map[string]float64)

	for _, s := range samples {
		obs := newRateObserver(t.cfg)
		m, err := t.runner.Run(t.net, s.Timeline, t.det, obs)
		if err != nil {
			return stats, fmt.Errorf("episode %s: %w", s.Name, err)
		}
		stats.episodes++
		stats.margin += m.Margin
		if m.Winner == s.Target {
			stats.correct++
		}
		for id, r := range obs.rates {
			rateSums[id] += r
		}
		for key, g := range episodeGradient(t.net, obs, s.Target, t.cfg.Temperature) {
			grads[key] += g
		}
	}

	t.applyGradients(grads, len(samples))
	t.postBatchPlasticity(rateSums, len(samples))
	return stats, nil
}

// applyGradients averages the batch gradients, optionally clips them by
// global L2 norm, and runs one optimizer step per surviving edge.
func (t *Trainer) applyGradients(grads map[edgeKey]float64, batchSize int) {
	if batchSize == 0 || len(grads) == 0 {
		return
	}
	scale := 1.0 / float64(batchSize)
	var sq float64
	for key := range grads {
		grads[key] *= scale
		sq += grads[key] * grads[key]
	}
	if t.cfg.GradClip > 0 {
		if norm := math.Sqrt(sq); norm > t.cfg.GradClip {
			shrink := t.cfg.GradClip / norm
			for key := range grads {
				grads[key] *= shrink
			}
		}
	}

	keys := make([]edgeKey, 0, len(grads))
	for key := range grads {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	t.opt.beginStep()
	for _, key := range keys {
		src := t.net.Neuron(key[0])
		if src == nil {
			continue
		}
		w, ok := src.Weight(key[1])
		if !ok {
			continue
		}
		w = t.opt.update(key, w, grads[key])
		if t.cfg.WeightClip > 0 {
			w = clamp(w, -t.cfg.WeightClip, t.cfg.WeightClip)
		}
		src.SetWeight(key[1], w)
	}
}

func (t *Trainer) postBatchPlasticity(rateSums map[string]float64, batchSize int) {
	if t.cfg.PruneEpsilon > 0 {
		if pruned := plasticity.PruneBelow(t.net, t.cfg.PruneEpsilon); pruned > 0 {
			t.opt.forget(func(key edgeKey) bool {
				n := t.net.Neuron(key[0])
				if n == nil {
					return false
				}
				_, ok := n.Weight(key[1])
				return ok
			})
		}
	}
	if t.cfg.GrowEdges > 0 {
		plasticity.Grow(t.rng, t.net, t.cfg.GrowEdges, t.cfg.InitWeight)
	}
	if batchSize > 0 && t.cfg.Intrinsic.Enabled() {
		rates := make(map[string]float64, len(rateSums))
		for id, sum := range rateSums {
			rates[id] = sum / float64(batchSize)
		}
		t.cfg.Intrinsic.Apply(t.net, rates)
	}
}

func (t *Trainer) watchedValue(s model.EpochStats) float64 {
	if t.cfg.RevertMetric == MetricMargin {
		return s.Margin
	}
	return s.Accuracy
}

// TrainEpochs runs the full epoch loop: seeded shuffle, batched gradient
// steps, history bookkeeping, checkpoint capture, and metric-triggered
// revert.
func (t *Trainer) TrainEpochs(ctx context.Context, ds dataset.Dataset) ([]model.EpochStats, error) {
	if ds.Len() == 0 {
		return nil, nil
	}
	var out []model.EpochStats
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		order := ds.Shuffled(t.rng)
		var correct, episodes int
		var marginSum float64
		for start := 0; start < len(order); start += t.cfg.BatchSize {
			end := start + t.cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := make([]dataset.Sample, 0, end-start)
			for _, idx := range order[start:end] {
				batch = append(batch, ds.Samples[idx])
			}
			stats, err := t.trainBatch(batch)
			if err != nil {
				return out, err
			}
			correct += stats.correct
			episodes += stats.episodes
			marginSum += stats.margin
		}

		stats := model.EpochStats{
			Epoch:    epoch,
			Accuracy: float64(correct) / float64(episodes),
			Margin:   marginSum / float64(episodes),
			Edges:    t.net.NumEdges(),
		}
		out = append(out, stats)
		t.history = append(t.history, t.watchedValue(stats))

		if t.ladder != nil {
			t.ladder.Push(checkpoint.Entry{
				Snapshot: t.net.Snapshot(),
				Epoch:    epoch,
				Metric:   t.watchedValue(stats),
			})
		}
		if t.cfg.RevertEnable && checkpoint.ShouldRevert(t.history, t.cfg.RevertWindow, t.cfg.RevertDrop) {
			if !t.RevertOneCheckpoint() {
				t.log.Warn("revert requested but checkpoint ladder is empty", "epoch", epoch)
			}
		}
	}
	return out, nil
}

// RevertOneCheckpoint restores the most recent stored snapshot. It reports
// false when the ladder is disabled or empty.
func (t *Trainer) RevertOneCheckpoint() bool {
	if t.ladder == nil {
		return false
	}
	e, ok := t.ladder.Pop()
	if !ok {
		return false
	}
	t.net.Restore(e.Snapshot)
	t.log.Info("reverted to checkpoint", "epoch", e.Epoch, "metric", e.Metric)
	return true
}

// Evaluate runs the dataset without updates and reports accuracy and mean
// margin under the raw argmax winner.
func (t *Trainer) Evaluate(ctx context.Context, ds dataset.Dataset) (float64, float64, error) {
	if ds.Len() == 0 {
		return 0, 0, nil
	}
	var correct int
	var marginSum float64
	for _, s := range ds.Samples {
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		default:
		}
		m, err := t.runner.Run(t.net, s.Timeline, t.det)
		if err != nil {
			return 0, 0, fmt.Errorf("episode %s: %w", s.Name, err)
		}
		if m.Winner == s.Target {
			correct++
		}
		marginSum += m.Margin
	}
	n := float64(ds.Len())
	return float64(correct) / n, marginSum / n, nil
}
