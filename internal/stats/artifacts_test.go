package stats

import (
	"os"
	"path/filepath"
	"testing"

	"spikelab/internal/model"
)

func TestRunIndexRoundTrip(t *testing.T) {
	dir := t.TempDir()

	entries, err := ListRunIndex(dir)
	if err != nil {
		t.Fatalf("list empty index: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %d entries", len(entries))
	}

	first := RunIndexEntry{
		RunID:         "run-a",
		CreatedAtUTC:  "2026-08-01T10:00:00Z",
		Kind:          "train",
		Algo:          "hebbian",
		Dataset:       "xor-rate",
		Seed:          1,
		Epochs:        10,
		FinalAccuracy: 1.0,
	}
	second := RunIndexEntry{
		RunID:         "run-b",
		CreatedAtUTC:  "2026-08-02T10:00:00Z",
		Kind:          "evolve",
		Dataset:       "xor-rate",
		Seed:          2,
		Generations:   5,
		FinalAccuracy: 0.75,
		BestFitness:   1.2,
	}
	if err := AppendRunIndex(dir, first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := AppendRunIndex(dir, second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	entries, err = ListRunIndex(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-b" || entries[1].RunID != "run-a" {
		t.Fatalf("index should be newest first: %+v", entries)
	}
}

func TestWriteTrainingArtifacts(t *testing.T) {
	dir := t.TempDir()
	report := model.TrainingReport{
		RunID: "run-1",
		Epochs: []model.EpochStats{
			{Epoch: 0, Accuracy: 0.5, Margin: 0.01, Edges: 4},
			{Epoch: 1, Accuracy: 1.0, Margin: 0.04, Edges: 4},
		},
	}

	runDir, err := WriteTrainingArtifacts(dir, report)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if runDir != filepath.Join(dir, "run-1") {
		t.Fatalf("unexpected run dir: %s", runDir)
	}

	var loaded model.TrainingReport
	if err := ReadJSON(filepath.Join(runDir, "training_report.json"), &loaded); err != nil {
		t.Fatalf("read report: %v", err)
	}
	if loaded.RunID != "run-1" || len(loaded.Epochs) != 2 {
		t.Fatalf("unexpected report: %+v", loaded)
	}

	var summary TrainingSummary
	if err := ReadJSON(filepath.Join(runDir, "summary.json"), &summary); err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if summary.Final.Accuracy != 1.0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestWriteLineageArtifacts(t *testing.T) {
	dir := t.TempDir()
	report := model.LineageReport{
		RunID: "evo-1",
		Nodes: []model.LineageNode{
			{ID: 0, Parent: -1, Generation: 0, Fitness: 0.5},
			{ID: 1, Parent: 0, Generation: 1, Fitness: 0.9},
		},
	}

	runDir, err := WriteLineageArtifacts(dir, report)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	var summary EvolutionSummary
	if err := ReadJSON(filepath.Join(runDir, "summary.json"), &summary); err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if summary.Best.ID != 1 {
		t.Fatalf("unexpected best node: %+v", summary.Best)
	}
}

func TestListRunIndexRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, runIndexFile), []byte("not json"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := ListRunIndex(dir); err == nil {
		t.Fatal("expected error for malformed index")
	}
}
