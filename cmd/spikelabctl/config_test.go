package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"spikelab/internal/runconfig"
)

func resolveArgs(t *testing.T, args []string) (runconfig.Spec, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	sf := registerSpecFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return sf.resolve(fs)
}

func TestResolveDefaults(t *testing.T) {
	spec, err := resolveArgs(t, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if spec.Algo != runconfig.AlgoHebbian || spec.Dataset != "xor-rate" {
		t.Fatalf("unexpected defaults: %+v", spec)
	}
	if spec.Hebbian.Epochs != 10 {
		t.Fatalf("unexpected default epochs: %d", spec.Hebbian.Epochs)
	}
}

func TestResolveFlagsOverrideDefaults(t *testing.T) {
	spec, err := resolveArgs(t, []string{
		"-algo", "ratedgrad",
		"-dataset", "one-hot-3",
		"-seed", "42",
		"-epochs", "5",
		"-pop", "12",
		"-gens", "4",
		"-workers", "3",
		"-store", "sqlite",
		"-db-path", "lab.db",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if spec.Algo != runconfig.AlgoRateGrad || spec.Dataset != "one-hot-3" {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	if spec.Seed != 42 || spec.Hebbian.Seed != 42 || spec.RateGrad.Seed != 42 || spec.Evolution.Seed != 42 {
		t.Fatalf("seed did not propagate: %+v", spec)
	}
	if spec.Hebbian.Epochs != 5 || spec.RateGrad.Epochs != 5 {
		t.Fatalf("epochs did not propagate: %+v", spec)
	}
	if spec.Evolution.Population != 12 || spec.Evolution.Generations != 4 || spec.Evolution.Workers != 3 {
		t.Fatalf("unexpected evolution: %+v", spec.Evolution)
	}
	if spec.Store != "sqlite" || spec.DBPath != "lab.db" {
		t.Fatalf("unexpected store: %s %s", spec.Store, spec.DBPath)
	}
}

func TestResolveConfigFileWithFlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	body := `{
		"algo": "ratedgrad",
		"dataset": "one-hot-3",
		"seed": 7,
		"hebbian": {"learning_rate": 0.3}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	spec, err := resolveArgs(t, []string{"-config", path, "-dataset", "xor-rate"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Explicit flag wins over the file.
	if spec.Dataset != "xor-rate" {
		t.Fatalf("flag should override config: %s", spec.Dataset)
	}
	// Untouched file values survive.
	if spec.Algo != runconfig.AlgoRateGrad || spec.Seed != 7 {
		t.Fatalf("config values lost: %+v", spec)
	}
	if spec.Hebbian.LearningRate != 0.3 {
		t.Fatalf("section value lost: %v", spec.Hebbian.LearningRate)
	}
}

func TestResolveRejectsInvalidOverride(t *testing.T) {
	if _, err := resolveArgs(t, []string{"-algo", "backprop"}); err == nil {
		t.Fatal("expected error for unknown algo")
	}
	if _, err := resolveArgs(t, []string{"-validation-frac", "1.5"}); err == nil {
		t.Fatal("expected error for bad validation fraction")
	}
	if _, err := resolveArgs(t, []string{"-config", filepath.Join(t.TempDir(), "absent.json")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
