package storage

import (
	"context"
	"sync"

	"spikelab/internal/model"
)

type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]model.NetSnapshot
	trainings map[string]model.TrainingReport
	lineages  map[string]model.LineageReport
	history   map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = make(map[string]model.NetSnapshot)
	s.trainings = make(map[string]model.TrainingReport)
	s.lineages = make(map[string]model.LineageReport)
	s.history = make(map[string][]float64)
	return nil
}

func copySnapshot(snap model.NetSnapshot) model.NetSnapshot {
	out := snap
	out.Neurons = append([]model.NeuronRecord(nil), snap.Neurons...)
	out.Edges = append([]model.EdgeRecord(nil), snap.Edges...)
	return out
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap model.NetSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.ID] = copySnapshot(snap)
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id string) (model.NetSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return model.NetSnapshot{}, false, nil
	}
	return copySnapshot(snap), true, nil
}

func (s *MemoryStore) SaveTrainingReport(_ context.Context, report model.TrainingReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	report.Epochs = append([]model.EpochStats(nil), report.Epochs...)
	s.trainings[report.RunID] = report
	return nil
}

func (s *MemoryStore) GetTrainingReport(_ context.Context, runID string) (model.TrainingReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.trainings[runID]
	if !ok {
		return model.TrainingReport{}, false, nil
	}
	report.Epochs = append([]model.EpochStats(nil), report.Epochs...)
	return report, true, nil
}

func (s *MemoryStore) SaveLineageReport(_ context.Context, report model.LineageReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	report.Nodes = append([]model.LineageNode(nil), report.Nodes...)
	s.lineages[report.RunID] = report
	return nil
}

func (s *MemoryStore) GetLineageReport(_ context.Context, runID string) (model.LineageReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.lineages[runID]
	if !ok {
		return model.LineageReport{}, false, nil
	}
	report.Nodes = append([]model.LineageNode(nil), report.Nodes...)
	return report, true, nil
}

func (s *MemoryStore) SaveMetricHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetMetricHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}
