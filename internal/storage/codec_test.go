package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"spikelab/internal/model"
)

func TestDecodeSnapshotFixture(t *testing.T) {
	snap := decodeSnapshotFixture(t, "minimal_snapshot_v1.json")
	if snap.ID != "net-minimal-1" {
		t.Fatalf("unexpected snapshot id: %s", snap.ID)
	}
	if len(snap.Neurons) != 2 || len(snap.Edges) != 1 {
		t.Fatalf("unexpected snapshot shape: %d neurons, %d edges", len(snap.Neurons), len(snap.Edges))
	}
	if snap.Edges[0].Weight != 1.5 {
		t.Fatalf("unexpected edge weight: %f", snap.Edges[0].Weight)
	}
}

func TestDecodeTrainingReportFixture(t *testing.T) {
	path := fixturePath("minimal_training_report_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	report, err := DecodeTrainingReport(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if report.RunID != "run-minimal-1" {
		t.Fatalf("unexpected run id: %s", report.RunID)
	}
	if len(report.Epochs) != 2 || report.Epochs[1].Accuracy != 0.75 {
		t.Fatalf("unexpected epochs: %+v", report.Epochs)
	}
}

func TestDecodeLineageReportFixture(t *testing.T) {
	path := fixturePath("minimal_lineage_report_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	report, err := DecodeLineageReport(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if report.RunID != "evo-minimal-1" {
		t.Fatalf("unexpected run id: %s", report.RunID)
	}
	if len(report.Nodes) != 2 || report.Nodes[0].Parent != -1 {
		t.Fatalf("unexpected nodes: %+v", report.Nodes)
	}
}

func TestSnapshotCodecRoundTrip(t *testing.T) {
	input := model.NetSnapshot{
		VersionedRecord: Stamp(),
		ID:              "net-1",
		Neurons: []model.NeuronRecord{
			{ID: "S1", Threshold: 0.5},
			{ID: "O1", Threshold: 1.0, Leak: 0.3, Refractory: 1},
		},
		Edges: []model.EdgeRecord{
			{From: "S1", To: "O1", Weight: 1.5},
		},
	}

	encoded, err := EncodeSnapshot(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeSnapshot(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("roundtrip mismatch\nactual=%+v\nexpected=%+v", decoded, input)
	}
}

func TestSnapshotCodecRoundTripFixtureEquality(t *testing.T) {
	expected := decodeSnapshotFixture(t, "minimal_snapshot_v1.json")

	encoded, err := EncodeSnapshot(expected)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	actual, err := DecodeSnapshot(encoded)
	if err != nil {
		t.Fatalf("decode roundtrip: %v", err)
	}

	if !reflect.DeepEqual(actual, expected) {
		t.Fatalf("roundtrip mismatch\nactual=%+v\nexpected=%+v", actual, expected)
	}
}

func TestTrainingReportCodecRoundTrip(t *testing.T) {
	input := model.TrainingReport{
		VersionedRecord: Stamp(),
		RunID:           "run-7",
		Epochs: []model.EpochStats{
			{Epoch: 0, Accuracy: 0.5, Margin: 0.01, Edges: 8},
			{Epoch: 1, Accuracy: 1.0, Margin: 0.05, Edges: 6},
		},
	}

	encoded, err := EncodeTrainingReport(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTrainingReport(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("roundtrip mismatch\nactual=%+v\nexpected=%+v", decoded, input)
	}
}

func TestLineageReportCodecRoundTrip(t *testing.T) {
	input := model.LineageReport{
		VersionedRecord: Stamp(),
		RunID:           "evo-1",
		Nodes: []model.LineageNode{
			{ID: 0, Parent: -1, Generation: 0, Fitness: 0.6, Accuracy: 0.5, Margin: 0.2, Edges: 4},
			{ID: 1, Parent: 0, Generation: 1, Fitness: 0.9, Accuracy: 0.75, Margin: 0.1, Edges: 3},
		},
	}

	encoded, err := EncodeLineageReport(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeLineageReport(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("roundtrip mismatch\nactual=%+v\nexpected=%+v", decoded, input)
	}
}

func TestMetricHistoryCodecRoundTrip(t *testing.T) {
	input := []float64{0.1, 0.4, 0.8}
	encoded, err := EncodeMetricHistory(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeMetricHistory(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("decoded history mismatch: got=%+v want=%+v", decoded, input)
	}
}

func TestDecodeSnapshotVersionMismatch(t *testing.T) {
	snap := decodeSnapshotFixture(t, "minimal_snapshot_v1.json")
	snap.CodecVersion++

	encoded, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeSnapshot(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeTrainingReportVersionMismatch(t *testing.T) {
	report := model.TrainingReport{VersionedRecord: Stamp(), RunID: "run-1"}
	report.SchemaVersion++

	encoded, err := EncodeTrainingReport(report)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeTrainingReport(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeLineageReportVersionMismatch(t *testing.T) {
	report := model.LineageReport{VersionedRecord: Stamp(), RunID: "evo-1"}
	report.CodecVersion++

	encoded, err := EncodeLineageReport(report)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeLineageReport(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeSnapshotMalformedPayload(t *testing.T) {
	if _, err := DecodeSnapshot([]byte("{")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if _, err := DecodeMetricHistory([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed history payload")
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}

func decodeSnapshotFixture(t *testing.T, name string) model.NetSnapshot {
	t.Helper()

	path := fixturePath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	return snap
}
