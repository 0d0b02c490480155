package main

import (
	"flag"

	"spikelab/internal/runconfig"
)

// specFlags is the flag group shared by train and evolve. Flags override
// the config file only when explicitly set on the command line.
type specFlags struct {
	configPath     *string
	algo           *string
	datasetName    *string
	validationFrac *float64
	seed           *int64
	epochs         *int
	population     *int
	generations    *int
	workers        *int
	storeKind      *string
	dbPath         *string
}

func registerSpecFlags(fs *flag.FlagSet) *specFlags {
	return &specFlags{
		configPath:     fs.String("config", "", "run config JSON path"),
		algo:           fs.String("algo", runconfig.AlgoHebbian, "learning algorithm: hebbian|ratedgrad"),
		datasetName:    fs.String("dataset", "xor-rate", "built-in dataset name"),
		validationFrac: fs.Float64("validation-frac", 0, "validation fraction in [0,1)"),
		seed:           fs.Int64("seed", 1, "rng seed"),
		epochs:         fs.Int("epochs", 10, "training epochs"),
		population:     fs.Int("pop", 8, "evolution population size"),
		generations:    fs.Int("gens", 10, "evolution generation count"),
		workers:        fs.Int("workers", 0, "evolution evaluation workers (<2 is serial)"),
		storeKind:      fs.String("store", "memory", "store backend: memory|sqlite"),
		dbPath:         fs.String("db-path", "spikelab.db", "sqlite database path"),
	}
}

// resolve loads the config file if given and layers the explicitly set
// flags over it.
func (sf *specFlags) resolve(fs *flag.FlagSet) (runconfig.Spec, error) {
	spec := runconfig.Default()
	if *sf.configPath != "" {
		loaded, err := runconfig.Load(*sf.configPath)
		if err != nil {
			return runconfig.Spec{}, err
		}
		spec = loaded
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	if set["algo"] {
		spec.Algo = *sf.algo
	}
	if set["dataset"] {
		spec.Dataset = *sf.datasetName
	}
	if set["validation-frac"] {
		spec.ValidationFrac = *sf.validationFrac
	}
	if set["seed"] {
		spec.Seed = *sf.seed
		spec.Hebbian.Seed = *sf.seed
		spec.RateGrad.Seed = *sf.seed
		spec.Evolution.Seed = *sf.seed
	}
	if set["epochs"] {
		spec.Hebbian.Epochs = *sf.epochs
		spec.RateGrad.Epochs = *sf.epochs
	}
	if set["pop"] {
		spec.Evolution.Population = *sf.population
	}
	if set["gens"] {
		spec.Evolution.Generations = *sf.generations
	}
	if set["workers"] {
		spec.Evolution.Workers = *sf.workers
	}
	if set["store"] {
		spec.Store = *sf.storeKind
	}
	if set["db-path"] {
		spec.DBPath = *sf.dbPath
	}

	if err := spec.Validate(); err != nil {
		return runconfig.Spec{}, err
	}
	return spec, nil
}
