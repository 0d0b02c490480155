package storage

import (
	"encoding/json"
	"errors"

	"spikelab/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp returns the version header every freshly written record carries.
func Stamp() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeSnapshot(s model.NetSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSnapshot(data []byte) (model.NetSnapshot, error) {
	var snap model.NetSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.NetSnapshot{}, err
	}
	if err := checkVersion(snap.VersionedRecord); err != nil {
		return model.NetSnapshot{}, err
	}
	return snap, nil
}

func EncodeTrainingReport(r model.TrainingReport) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeTrainingReport(data []byte) (model.TrainingReport, error) {
	var report model.TrainingReport
	if err := json.Unmarshal(data, &report); err != nil {
		return model.TrainingReport{}, err
	}
	if err := checkVersion(report.VersionedRecord); err != nil {
		return model.TrainingReport{}, err
	}
	return report, nil
}

func EncodeLineageReport(r model.LineageReport) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeLineageReport(data []byte) (model.LineageReport, error) {
	var report model.LineageReport
	if err := json.Unmarshal(data, &report); err != nil {
		return model.LineageReport{}, err
	}
	if err := checkVersion(report.VersionedRecord); err != nil {
		return model.LineageReport{}, err
	}
	return report, nil
}

func EncodeMetricHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeMetricHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
