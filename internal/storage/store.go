package storage

import (
	"context"

	"spikelab/internal/model"
)

// Store persists the artifacts of training and evolution runs: network
// snapshots, epoch histories, and lineage forests.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, snap model.NetSnapshot) error
	GetSnapshot(ctx context.Context, id string) (model.NetSnapshot, bool, error)
	SaveTrainingReport(ctx context.Context, report model.TrainingReport) error
	GetTrainingReport(ctx context.Context, runID string) (model.TrainingReport, bool, error)
	SaveLineageReport(ctx context.Context, report model.LineageReport) error
	GetLineageReport(ctx context.Context, runID string) (model.LineageReport, bool, error)
	SaveMetricHistory(ctx context.Context, runID string, history []float64) error
	GetMetricHistory(ctx context.Context, runID string) ([]float64, bool, error)
}
