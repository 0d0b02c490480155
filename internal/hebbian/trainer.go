// Package hebbian implements the reward-modulated eligibility-trace
// learner: a three-factor rule where per-edge traces built from pre and
// post activity are scaled by an episode-level reward at batch boundaries.
package hebbian

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"spikelab/internal/checkpoint"
	"spikelab/internal/dataset"
	"spikelab/internal/detector"
	"spikelab/internal/episode"
	"spikelab/internal/model"
	"spikelab/internal/network"
	"spikelab/internal/neuron"
	"spikelab/internal/plasticity"
)

type Trainer struct {
	cfg    Config
	net    *network.Network
	runner *episode.Runner
	det    *detector.Detector
	rng    *rand.Rand
	log    *slog.Logger

	baseline float64
	usage    map[edgeKey]float64

	pruner   *plasticity.PatiencePruner
	inactive *plasticity.InactivePruner
	ladder   *checkpoint.Ladder
	history  []float64
}

func New(nw *network.Network, epCfg episode.Config, cfg Config) (*Trainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	runner, err := episode.NewRunner(epCfg)
	if err != nil {
		return nil, err
	}
	det, err := detector.New(detector.Config{
		Alpha:     cfg.RateAlpha,
		Threshold: detector.DefaultThreshold,
		DefaultID: nw.DefaultOutput(),
	})
	if err != nil {
		return nil, err
	}
	t := &Trainer{
		cfg:    cfg,
		net:    nw,
		runner: runner,
		det:    det,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		log:    slog.Default(),
		usage:  make(map[edgeKey]float64),
	}
	if cfg.PruneEpsilon > 0 {
		t.pruner, err = plasticity.NewPatiencePruner(cfg.PruneEpsilon, cfg.PrunePatience)
		if err != nil {
			return nil, err
		}
	}
	if cfg.InactivePruneIncoming || cfg.InactivePruneOutgoing {
		t.inactive, err = plasticity.NewInactivePruner(
			cfg.InactiveRateThreshold, cfg.InactiveRatePatience, cfg.InactivePruneMax,
			cfg.InactivePruneIncoming, cfg.InactivePruneOutgoing)
		if err != nil {
			return nil, err
		}
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

type episodeResult struct {
	metrics   model.EpisodeMetrics
	target    string
	reward    float64
	used      float64
	satisfied bool
	obs       *traceObserver
}

func (t *Trainer) runEpisode(s dataset.Sample) (episodeResult, error) {
	obs := newTraceObserver(t.cfg)
	m, err := t.runner.Run(t.net, s.Timeline, t.det, obs)
	if err != nil {
		return episodeResult{}, fmt.Errorf("episode %s: %w", s.Name, err)
	}
	r := t.reward(m, s.Target)
	used := t.advantage(r)
	satisfied := t.cfg.NoUpdateIfSatisfied &&
		m.Winner == s.Target &&
		targetMargin(m.Rates, s.Target) >= t.cfg.SatisfiedMargin
	return episodeResult{metrics: m, target: s.Target, reward: r, used: used, satisfied: satisfied, obs: obs}, nil
}

// gatePasses applies the to-side update gate.
func (t *Trainer) gatePasses(to string, res episodeResult) bool {
	switch t.cfg.UpdateGate {
	case GateWinnerOnly:
		return to == res.metrics.Winner
	case GateTargetOnly:
		return to == res.target
	}
	return true
}

type batchStats struct {
	correct   int
	margin    float64
	episodes  int
	rewardSum float64
}

func (t *Trainer) trainBatch(samples []dataset.Sample) (batchStats, error) {
	var stats batchStats
	deltas := make(map[edgeKey]float64)
	rateSums := make(map[string]float64)

	for _, s := range samples {
		res, err := t.runEpisode(s)
		if err != nil {
			return stats, err
		}
		stats.episodes++
		stats.rewardSum += res.reward
		stats.margin += res.metrics.Margin
		if res.metrics.Winner == s.Target {
			stats.correct++
		}
		for id, r := range res.obs.rates {
			rateSums[id] += r
		}
		if res.satisfied {
			continue
		}
		for key, e := range res.obs.elig {
			if !t.gatePasses(key[1], res) {
				continue
			}
			deltas[key] += t.cfg.LearningRate * res.used * e
			t.usage[key] += absf(e)
		}
	}

	t.applyDeltas(deltas, len(samples))
	if t.cfg.UsageBoost {
		t.applyUsageBoost(stats)
	}
	t.postBatchPlasticity(rateSums, len(samples))
	return stats, nil
}

// applyDeltas adds the batch-mean delta to each surviving edge, then
// applies weight decay and the symmetric clip across all edges.
func (t *Trainer) applyDeltas(deltas map[edgeKey]float64, batchSize int) {
	if batchSize == 0 {
		return
	}
	scale := 1.0 / float64(batchSize)

	keys := make([]edgeKey, 0, len(deltas))
	for key := range deltas {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, key := range keys {
		src := t.net.Neuron(key[0])
		if src == nil {
			continue
		}
		w, ok := src.Weight(key[1])
		if !ok {
			continue
		}
		src.SetWeight(key[1], w+deltas[key]*scale)
	}

	t.net.EachEdge(func(from string, e neuron.Edge) {
		w := e.Weight
		if t.cfg.WeightDecay > 0 {
			w -= t.cfg.WeightDecay * w
		}
		if t.cfg.WeightClip > 0 {
			w = clamp(w, -t.cfg.WeightClip, t.cfg.WeightClip)
		}
		if w != e.Weight {
			t.net.Neuron(from).SetWeight(e.To, w)
		}
	})
}

// applyUsageBoost nudges frequently used edges in the direction of the
// batch's average reward, normalized by the busiest edge.
func (t *Trainer) applyUsageBoost(stats batchStats) {
	if stats.episodes == 0 {
		return
	}
	avgReward := stats.rewardSum / float64(stats.episodes)
	var maxUsage float64
	for _, u := range t.usage {
		if u > maxUsage {
			maxUsage = u
		}
	}
	if maxUsage <= 0 {
		return
	}
	t.net.EachEdge(func(from string, e neuron.Edge) {
		u := t.usage[edgeKey{from, e.To}]
		if u == 0 {
			return
		}
		w := e.Weight + t.cfg.UsageLearningRate*avgReward*(u/maxUsage)
		if t.cfg.WeightClip > 0 {
			w = clamp(w, -t.cfg.WeightClip, t.cfg.WeightClip)
		}
		t.net.Neuron(from).SetWeight(e.To, w)
	})
}

func (t *Trainer) postBatchPlasticity(rateSums map[string]float64, batchSize int) {
	if t.pruner != nil {
		t.pruner.Observe(t.net)
	}
	if t.cfg.GrowEdges > 0 {
		plasticity.Grow(t.rng, t.net, t.cfg.GrowEdges, t.cfg.InitWeight)
	}
	if batchSize > 0 && (t.inactive != nil || t.cfg.Intrinsic.Enabled()) {
		rates := make(map[string]float64, len(rateSums))
		for id, sum := range rateSums {
			rates[id] = sum / float64(batchSize)
		}
		if t.inactive != nil {
			t.inactive.Observe(t.net, rates)
		}
		if t.cfg.Intrinsic.Enabled() {
			t.cfg.Intrinsic.Apply(t.net, rates)
		}
	}
}

func (t *Trainer) watchedValue(s model.EpochStats) float64 {
	if t.cfg.RevertMetric == MetricMargin {
		return s.Margin
	}
	return s.Accuracy
}

// TrainEpochs runs the full epoch loop: seeded shuffle, batch updates,
// history bookkeeping, checkpoint capture, and metric-triggered revert.
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

// Evaluate runs the dataset without weight updates and reports accuracy
// and mean detector margin.
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

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
