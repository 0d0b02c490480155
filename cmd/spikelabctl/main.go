package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"spikelab/internal/network"
	"spikelab/internal/neuron"
	"spikelab/internal/stats"
	labapi "spikelab/pkg/spikelab"
)

const artifactsDir = "artifacts"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "train":
		return runTrain(ctx, args[1:])
	case "evolve":
		return runEvolve(ctx, args[1:])
	case "gen-net":
		return runGenNet(ctx, args[1:])
	case "inspect":
		return runInspect(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "report":
		return runReport(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: spikelabctl <train|evolve|gen-net|inspect|runs|report|history> [flags]", msg)
}

func loadNetwork(path string) (*network.Network, error) {
	if path == "" {
		return nil, errors.New("missing -net flag")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	nw, err := network.Load(f, network.TopologyPolicy{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nw, nil
}

func verboseOutput() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	netPath := fs.String("net", "", "network file (declarations or NEWNET recipe)")
	outPath := fs.String("out", "", "write the trained network back to this file (optional)")
	artifacts := fs.String("artifacts", artifactsDir, "artifacts directory")
	sf := registerSpecFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	spec, err := sf.resolve(fs)
	if err != nil {
		return err
	}

	nw, err := loadNetwork(*netPath)
	if err != nil {
		return err
	}

	client, err := labapi.New(labapi.Options{
		StoreKind:    spec.Store,
		DBPath:       spec.DBPath,
		ArtifactsDir: *artifacts,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Train(ctx, labapi.TrainRequest{Spec: spec, Network: nw})
	if err != nil {
		return err
	}

	fmt.Printf("train completed run_id=%s algo=%s dataset=%s seed=%d\n",
		summary.RunID, spec.Algo, spec.Dataset, spec.Seed)
	if verboseOutput() {
		for _, e := range summary.Epochs {
			fmt.Printf("epoch=%d accuracy=%.4f margin=%.4f edges=%d\n", e.Epoch, e.Accuracy, e.Margin, e.Edges)
		}
	}
	fmt.Printf("epochs=%s accuracy=%.4f margin=%.4f\n",
		humanize.Comma(int64(len(summary.Epochs))), summary.Accuracy, summary.Margin)
	fmt.Printf("snapshot_id=%s artifacts_dir=%s\n", summary.SnapshotID, summary.ArtifactsDir)

	if *outPath != "" {
		if err := saveNetwork(*outPath, nw); err != nil {
			return err
		}
		fmt.Printf("saved net=%s\n", *outPath)
	}
	return nil
}

func runEvolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evolve", flag.ContinueOnError)
	netPath := fs.String("net", "", "seed network file (declarations or NEWNET recipe)")
	outPath := fs.String("out", "", "write the champion network to this file (optional)")
	artifacts := fs.String("artifacts", artifactsDir, "artifacts directory")
	sf := registerSpecFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	spec, err := sf.resolve(fs)
	if err != nil {
		return err
	}

	nw, err := loadNetwork(*netPath)
	if err != nil {
		return err
	}

	client, err := labapi.New(labapi.Options{
		StoreKind:    spec.Store,
		DBPath:       spec.DBPath,
		ArtifactsDir: *artifacts,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Evolve(ctx, labapi.EvolveRequest{Spec: spec, Network: nw})
	if err != nil {
		return err
	}

	fmt.Printf("evolve completed run_id=%s algo=%s dataset=%s seed=%d pop=%d gens=%d\n",
		summary.RunID, spec.Algo, spec.Dataset, spec.Seed,
		spec.Evolution.Population, spec.Evolution.Generations)
	if verboseOutput() {
		for _, g := range summary.Generations {
			fmt.Printf("generation=%d best_fitness=%.6f mean_fitness=%.6f best_accuracy=%.4f\n",
				g.Generation, g.BestFitness, g.MeanFitness, g.BestAccuracy)
		}
	}
	fmt.Printf("best_fitness=%.6f best_accuracy=%.4f best_generation=%d\n",
		summary.Best.Fitness, summary.Best.Accuracy, summary.Best.Generation)
	fmt.Printf("snapshot_id=%s artifacts_dir=%s\n", summary.SnapshotID, summary.ArtifactsDir)

	if *outPath != "" {
		champion, err := client.Snapshot(ctx, summary.SnapshotID)
		if err != nil {
			return err
		}
		best, err := network.FromSnapshot(champion, network.TopologyPolicy{})
		if err != nil {
			return err
		}
		if err := saveNetwork(*outPath, best); err != nil {
			return err
		}
		fmt.Printf("saved net=%s\n", *outPath)
	}
	return nil
}

func saveNetwork(path string, nw *network.Network) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := network.Save(f, nw); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func runGenNet(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("gen-net", flag.ContinueOnError)
	recipePath := fs.String("recipe", "", "NEWNET recipe file")
	outPath := fs.String("out", "", "output network file")
	seed := fs.Int64("seed", 0, "override the recipe's sampling seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *recipePath == "" {
		return errors.New("missing -recipe flag")
	}
	if *outPath == "" {
		return errors.New("missing -out flag")
	}

	f, err := os.Open(*recipePath)
	if err != nil {
		return err
	}
	defer f.Close()
	rec, err := network.ParseRecipe(f)
	if err != nil {
		return fmt.Errorf("%s: %w", *recipePath, err)
	}

	seedSet := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "seed" {
			seedSet = true
		}
	})
	if seedSet {
		rec.Seed = *seed
	}

	nw, err := rec.Generate(network.TopologyPolicy{})
	if err != nil {
		return err
	}
	if err := saveNetwork(*outPath, nw); err != nil {
		return err
	}

	fmt.Printf("generated net=%s neurons=%d edges=%d seed=%d\n",
		*outPath, nw.NumNeurons(), nw.NumEdges(), rec.Seed)
	return nil
}

func runInspect(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	netPath := fs.String("net", "", "network file to inspect")
	jsonOut := fs.Bool("json", false, "emit inspection as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	nw, err := loadNetwork(*netPath)
	if err != nil {
		return err
	}
	info, err := os.Stat(*netPath)
	if err != nil {
		return err
	}

	var sensory, hidden, outputs int
	for _, id := range nw.IDs() {
		switch network.RoleOf(id) {
		case network.RoleSensory:
			sensory++
		case network.RoleOutput:
			outputs++
		default:
			hidden++
		}
	}
	var weights []float64
	nw.EachEdge(func(from string, e neuron.Edge) {
		weights = append(weights, e.Weight)
	})
	weightSummary := stats.Summarize(weights)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Path    string        `json:"path"`
			Bytes   int64         `json:"bytes"`
			Neurons int           `json:"neurons"`
			Sensory int           `json:"sensory"`
			Hidden  int           `json:"hidden"`
			Outputs int           `json:"outputs"`
			Edges   int           `json:"edges"`
			Weights stats.Summary `json:"weights"`
		}{
			Path:    *netPath,
			Bytes:   info.Size(),
			Neurons: nw.NumNeurons(),
			Sensory: sensory,
			Hidden:  hidden,
			Outputs: outputs,
			Edges:   nw.NumEdges(),
			Weights: weightSummary,
		})
	}

	fmt.Printf("net=%s size=%s\n", *netPath, humanize.IBytes(uint64(info.Size())))
	fmt.Printf("neurons=%s sensory=%d hidden=%d outputs=%d edges=%s\n",
		humanize.Comma(int64(nw.NumNeurons())), sensory, hidden, outputs,
		humanize.Comma(int64(nw.NumEdges())))
	if weightSummary.Count > 0 {
		fmt.Printf("weights mean=%.4f std=%.4f min=%.4f max=%.4f\n",
			weightSummary.Mean, weightSummary.StdDev, weightSummary.Min, weightSummary.Max)
	}
	if nw.DefaultOutput() != "" {
		fmt.Printf("default_output=%s\n", nw.DefaultOutput())
	}
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	artifacts := fs.String("artifacts", artifactsDir, "artifacts directory")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(*artifacts)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	for _, e := range entries {
		fmt.Printf("run_id=%s created_at=%s kind=%s algo=%s dataset=%s seed=%d final_accuracy=%.4f\n",
			e.RunID, e.CreatedAtUTC, e.Kind, e.Algo, e.Dataset, e.Seed, e.FinalAccuracy)
	}
	return nil
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "report on the most recent run from the run index")
	artifacts := fs.String("artifacts", artifactsDir, "artifacts directory")
	storeKind := fs.String("store", "memory", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "spikelab.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := resolveRunID(*runID, *latest, *artifacts)
	if err != nil {
		return err
	}

	client, err := labapi.New(labapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: *artifacts,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if report, err := client.TrainingReport(ctx, id); err == nil {
		return enc.Encode(report)
	}
	lineage, err := client.LineageReport(ctx, id)
	if err != nil {
		return fmt.Errorf("no report found for run id: %s", id)
	}
	return enc.Encode(lineage)
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "history for the most recent run from the run index")
	artifacts := fs.String("artifacts", artifactsDir, "artifacts directory")
	storeKind := fs.String("store", "memory", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "spikelab.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := resolveRunID(*runID, *latest, *artifacts)
	if err != nil {
		return err
	}

	client, err := labapi.New(labapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: *artifacts,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.MetricHistory(ctx, id)
	if err != nil {
		return err
	}
	for i, v := range history {
		fmt.Printf("step=%d value=%.6f\n", i, v)
	}
	summary := stats.Summarize(history)
	fmt.Printf("count=%d mean=%.6f min=%.6f max=%.6f\n",
		summary.Count, summary.Mean, summary.Min, summary.Max)
	return nil
}

func resolveRunID(runID string, latest bool, artifacts string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either -run-id or -latest, not both")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("requires -run-id or -latest")
	}
	entries, err := stats.ListRunIndex(artifacts)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
