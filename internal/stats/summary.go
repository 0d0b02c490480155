// Package stats computes run summaries and writes run artifacts to disk.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"spikelab/internal/model"
)

// Summary holds the descriptive statistics of one metric series.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
}

// Summarize computes descriptive statistics over the series. An empty
// series yields the zero Summary.
func Summarize(xs []float64) Summary {
	if len(xs) == 0 {
		return Summary{}
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	s := Summary{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}

// TrainingSummary condenses a training report's epoch history.
type TrainingSummary struct {
	Accuracy Summary          `json:"accuracy"`
	Margin   Summary          `json:"margin"`
	Final    model.EpochStats `json:"final"`
}

// SummarizeEpochs builds a TrainingSummary from an epoch history.
func SummarizeEpochs(epochs []model.EpochStats) TrainingSummary {
	acc := make([]float64, 0, len(epochs))
	margin := make([]float64, 0, len(epochs))
	for _, e := range epochs {
		acc = append(acc, e.Accuracy)
		margin = append(margin, e.Margin)
	}
	out := TrainingSummary{
		Accuracy: Summarize(acc),
		Margin:   Summarize(margin),
	}
	if len(epochs) > 0 {
		out.Final = epochs[len(epochs)-1]
	}
	return out
}

// EvolutionSummary condenses a lineage forest.
type EvolutionSummary struct {
	Fitness  Summary           `json:"fitness"`
	Accuracy Summary           `json:"accuracy"`
	Best     model.LineageNode `json:"best"`
}

// SummarizeLineage builds an EvolutionSummary over all lineage nodes.
// Best is the highest-fitness node; ties keep the earliest id.
func SummarizeLineage(nodes []model.LineageNode) EvolutionSummary {
	fitness := make([]float64, 0, len(nodes))
	acc := make([]float64, 0, len(nodes))
	var best model.LineageNode
	for i, n := range nodes {
		fitness = append(fitness, n.Fitness)
		acc = append(acc, n.Accuracy)
		if i == 0 || n.Fitness > best.Fitness {
			best = n
		}
	}
	return EvolutionSummary{
		Fitness:  Summarize(fitness),
		Accuracy: Summarize(acc),
		Best:     best,
	}
}
