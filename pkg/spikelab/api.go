// Package spikelab is the public facade over the lab's trainers, the
// evolution engine, and run persistence. The CLI is a thin shell around
// this package.
package spikelab

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"spikelab/internal/dataset"
	"spikelab/internal/evolution"
	"spikelab/internal/hebbian"
	"spikelab/internal/model"
	"spikelab/internal/network"
	"spikelab/internal/ratedgrad"
	"spikelab/internal/runconfig"
	"spikelab/internal/stats"
	"spikelab/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultDBPath       = "spikelab.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
}

type Client struct {
	store        storage.Store
	artifactsDir string
	initialized  bool
}

type TrainRequest struct {
	Spec    runconfig.Spec
	Network *network.Network
}

type TrainSummary struct {
	RunID        string
	SnapshotID   string
	ArtifactsDir string
	Epochs       []model.EpochStats
	Final        model.EpochStats
	Accuracy     float64
	Margin       float64
}

type EvolveRequest struct {
	Spec    runconfig.Spec
	Network *network.Network
}

type EvolveSummary struct {
	RunID            string
	SnapshotID       string
	ArtifactsDir     string
	Generations      []evolution.GenerationStats
	Best             model.LineageNode
	BestByGeneration []float64
}

type RunsRequest struct {
	Limit int
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store, artifactsDir: artifactsDir}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) ensureInit(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func newRunID(kind string) string {
	return kind + "-" + uuid.NewString()
}

// newTrainer builds the learner the spec's algo names, bound to nw.
func newTrainer(spec runconfig.Spec, nw *network.Network) (evolution.Trainer, error) {
	switch spec.Algo {
	case runconfig.AlgoHebbian:
		return hebbian.New(nw, spec.Episode, spec.Hebbian)
	case runconfig.AlgoRateGrad:
		return ratedgrad.New(nw, spec.Episode, spec.RateGrad)
	default:
		return nil, fmt.Errorf("unsupported algo: %s", spec.Algo)
	}
}

// splitDataset resolves the spec's dataset and carves off a validation
// part when the spec asks for one.
func splitDataset(spec runconfig.Spec) (train, validation dataset.Dataset, err error) {
	ds, err := dataset.ByName(spec.Dataset)
	if err != nil {
		return dataset.Dataset{}, dataset.Dataset{}, err
	}
	if spec.ValidationFrac <= 0 {
		return ds, dataset.Dataset{}, nil
	}
	return ds.Split(spec.ValidationFrac, spec.Seed)
}

// Train runs one supervised training run, persists its report, snapshot,
// and accuracy history, and writes the run's artifacts to disk.
func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	if req.Network == nil {
		return TrainSummary{}, errors.New("train requires a network")
	}
	if err := c.ensureInit(ctx); err != nil {
		return TrainSummary{}, err
	}
	spec := req.Spec

	train, validation, err := splitDataset(spec)
	if err != nil {
		return TrainSummary{}, err
	}
	tr, err := newTrainer(spec, req.Network)
	if err != nil {
		return TrainSummary{}, err
	}

	epochs, err := tr.TrainEpochs(ctx, train)
	if err != nil {
		return TrainSummary{}, err
	}
	evalSet := train
	if validation.Len() > 0 {
		evalSet = validation
	}
	acc, margin, err := tr.Evaluate(ctx, evalSet)
	if err != nil {
		return TrainSummary{}, err
	}

	runID := newRunID("train")
	report := model.TrainingReport{
		VersionedRecord: storage.Stamp(),
		RunID:           runID,
		Epochs:          epochs,
	}
	if err := c.store.SaveTrainingReport(ctx, report); err != nil {
		return TrainSummary{}, err
	}

	snap := req.Network.Snapshot()
	snap.VersionedRecord = storage.Stamp()
	snap.ID = "net-" + runID
	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		return TrainSummary{}, err
	}

	history := make([]float64, 0, len(epochs))
	for _, e := range epochs {
		history = append(history, e.Accuracy)
	}
	if err := c.store.SaveMetricHistory(ctx, runID, history); err != nil {
		return TrainSummary{}, err
	}

	runDir, err := stats.WriteTrainingArtifacts(c.artifactsDir, report)
	if err != nil {
		return TrainSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:         runID,
		CreatedAtUTC:  stats.NowUTC(),
		Kind:          "train",
		Algo:          spec.Algo,
		Dataset:       spec.Dataset,
		Seed:          spec.Seed,
		Epochs:        len(epochs),
		FinalAccuracy: acc,
	}); err != nil {
		return TrainSummary{}, err
	}

	summary := TrainSummary{
		RunID:        runID,
		SnapshotID:   snap.ID,
		ArtifactsDir: filepath.Clean(runDir),
		Epochs:       epochs,
		Accuracy:     acc,
		Margin:       margin,
	}
	if len(epochs) > 0 {
		summary.Final = epochs[len(epochs)-1]
	}
	return summary, nil
}

// Evolve runs one evolution run, persists the lineage report, the
// champion snapshot, and the best-fitness history, and writes the run's
// artifacts to disk.
func (c *Client) Evolve(ctx context.Context, req EvolveRequest) (EvolveSummary, error) {
	if req.Network == nil {
		return EvolveSummary{}, errors.New("evolve requires a network")
	}
	if err := c.ensureInit(ctx); err != nil {
		return EvolveSummary{}, err
	}
	spec := req.Spec

	train, validation, err := splitDataset(spec)
	if err != nil {
		return EvolveSummary{}, err
	}

	factory := func(nw *network.Network, seed int64, innerEpochs int) (evolution.Trainer, error) {
		inner := spec
		inner.Hebbian.Seed = seed
		inner.Hebbian.Epochs = innerEpochs
		inner.RateGrad.Seed = seed
		inner.RateGrad.Epochs = innerEpochs
		return newTrainer(inner, nw)
	}
	eng, err := evolution.New(req.Network, factory, spec.Evolution)
	if err != nil {
		return EvolveSummary{}, err
	}

	var gens []evolution.GenerationStats
	var bestByGen []float64
	eng.SetGenerationCallback(func(gen int, best model.NetSnapshot, s evolution.GenerationStats) {
		gens = append(gens, s)
		bestByGen = append(bestByGen, s.BestFitness)
	})

	champion, bestNode, err := eng.Run(ctx, train, validation)
	if err != nil {
		return EvolveSummary{}, err
	}

	runID := newRunID("evolve")
	report := model.LineageReport{
		VersionedRecord: storage.Stamp(),
		RunID:           runID,
		Nodes:           eng.Lineage(),
	}
	if err := c.store.SaveLineageReport(ctx, report); err != nil {
		return EvolveSummary{}, err
	}

	champion.VersionedRecord = storage.Stamp()
	champion.ID = "net-" + runID
	if err := c.store.SaveSnapshot(ctx, champion); err != nil {
		return EvolveSummary{}, err
	}
	if err := c.store.SaveMetricHistory(ctx, runID, bestByGen); err != nil {
		return EvolveSummary{}, err
	}

	runDir, err := stats.WriteLineageArtifacts(c.artifactsDir, report)
	if err != nil {
		return EvolveSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:         runID,
		CreatedAtUTC:  stats.NowUTC(),
		Kind:          "evolve",
		Algo:          spec.Algo,
		Dataset:       spec.Dataset,
		Seed:          spec.Seed,
		Generations:   spec.Evolution.Generations,
		FinalAccuracy: bestNode.Accuracy,
		BestFitness:   bestNode.Fitness,
	}); err != nil {
		return EvolveSummary{}, err
	}

	return EvolveSummary{
		RunID:            runID,
		SnapshotID:       champion.ID,
		ArtifactsDir:     filepath.Clean(runDir),
		Generations:      gens,
		Best:             bestNode,
		BestByGeneration: bestByGen,
	}, nil
}

// Runs lists the artifact directory's run index, newest first.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]stats.RunIndexEntry, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return entries, nil
}

func (c *Client) TrainingReport(ctx context.Context, runID string) (model.TrainingReport, error) {
	if err := c.ensureInit(ctx); err != nil {
		return model.TrainingReport{}, err
	}
	report, ok, err := c.store.GetTrainingReport(ctx, runID)
	if err != nil {
		return model.TrainingReport{}, err
	}
	if !ok {
		return model.TrainingReport{}, fmt.Errorf("training report not found for run id: %s", runID)
	}
	return report, nil
}

func (c *Client) LineageReport(ctx context.Context, runID string) (model.LineageReport, error) {
	if err := c.ensureInit(ctx); err != nil {
		return model.LineageReport{}, err
	}
	report, ok, err := c.store.GetLineageReport(ctx, runID)
	if err != nil {
		return model.LineageReport{}, err
	}
	if !ok {
		return model.LineageReport{}, fmt.Errorf("lineage report not found for run id: %s", runID)
	}
	return report, nil
}

func (c *Client) MetricHistory(ctx context.Context, runID string) ([]float64, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetMetricHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("metric history not found for run id: %s", runID)
	}
	return history, nil
}

func (c *Client) Snapshot(ctx context.Context, id string) (model.NetSnapshot, error) {
	if err := c.ensureInit(ctx); err != nil {
		return model.NetSnapshot{}, err
	}
	snap, ok, err := c.store.GetSnapshot(ctx, id)
	if err != nil {
		return model.NetSnapshot{}, err
	}
	if !ok {
		return model.NetSnapshot{}, fmt.Errorf("snapshot not found: %s", id)
	}
	return snap, nil
}
