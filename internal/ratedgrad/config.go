package ratedgrad

import (
	"fmt"

	"spikelab/internal/checkpoint"
	"spikelab/internal/plasticity"
)

// Optimizer names the parameter update rule.
type Optimizer string

const (
	OptSGD   Optimizer = "sgd"
	OptAdam  Optimizer = "adam"
	OptAdamW Optimizer = "adamw"
)

// Metric names the value watched by the revert trigger.
type Metric string

const (
	MetricAccuracy Metric = "accuracy"
	MetricMargin   Metric = "margin"
)

type Config struct {
	LearningRate float64 `json:"learning_rate"`
	// Temperature divides output rates before the softmax.
	Temperature float64 `json:"temperature"`
	TraceDecay  float64 `json:"trace_decay"`

	Optimizer Optimizer `json:"optimizer"`
	Beta1     float64   `json:"beta1"`
	Beta2     float64   `json:"beta2"`
	Epsilon   float64   `json:"epsilon"`

	WeightDecay float64 `json:"weight_decay"`
	WeightClip  float64 `json:"weight_clip"`
	// GradClip is the global L2 norm ceiling on batch gradients. Zero
	// disables clipping.
	GradClip float64 `json:"grad_clip"`

	BatchSize int `json:"batch_size"`
	Epochs    int `json:"epochs"`

	PruneEpsilon float64 `json:"prune_epsilon"`
	GrowEdges    int     `json:"grow_edges"`
	InitWeight   float64 `json:"init_weight"`

	Intrinsic plasticity.IntrinsicConfig `json:"intrinsic"`

	RateAlpha float64 `json:"rate_alpha"`

	CheckpointEnable bool    `json:"checkpoint_enable"`
	LadderCaps       [3]int  `json:"ladder_caps"`
	RevertEnable     bool    `json:"revert_enable"`
	RevertMetric     Metric  `json:"revert_metric"`
	RevertWindow     int     `json:"revert_window"`
	RevertDrop       float64 `json:"revert_drop"`

	Seed int64 `json:"seed"`
}

// DefaultConfig returns the stock rate-gradient learner settings.
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.01,
		Temperature:  1.0,
		TraceDecay:   0.9,
		Optimizer:    OptAdam,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightClip:   10.0,
		BatchSize:    8,
		Epochs:       10,
		PruneEpsilon: 0.01,
		InitWeight:   0.5,
		RateAlpha:    0.05,

		LadderCaps:   checkpoint.DefaultCaps,
		RevertMetric: MetricAccuracy,
		RevertWindow: 1,
		RevertDrop:   0.15,

		Seed: 1,
	}
}

func (c Config) validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("ratedgrad: learning rate must be positive, got %v", c.LearningRate)
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("ratedgrad: temperature must be positive, got %v", c.Temperature)
	}
	if c.TraceDecay < 0 || c.TraceDecay >= 1 {
		return fmt.Errorf("ratedgrad: trace decay %v outside [0,1)", c.TraceDecay)
	}
	switch c.Optimizer {
	case OptSGD, OptAdam, OptAdamW:
	default:
		return fmt.Errorf("ratedgrad: unknown optimizer %q", c.Optimizer)
	}
	if c.Optimizer != OptSGD {
		if c.Beta1 <= 0 || c.Beta1 >= 1 {
			return fmt.Errorf("ratedgrad: beta1 %v outside (0,1)", c.Beta1)
		}
		if c.Beta2 <= 0 || c.Beta2 >= 1 {
			return fmt.Errorf("ratedgrad: beta2 %v outside (0,1)", c.Beta2)
		}
		if c.Epsilon <= 0 {
			return fmt.Errorf("ratedgrad: epsilon must be positive, got %v", c.Epsilon)
		}
	}
	switch c.RevertMetric {
	case MetricAccuracy, MetricMargin:
	default:
		return fmt.Errorf("ratedgrad: unknown revert metric %q", c.RevertMetric)
	}
	if c.WeightDecay < 0 || c.WeightDecay >= 1 {
		return fmt.Errorf("ratedgrad: weight decay %v outside [0,1)", c.WeightDecay)
	}
	if c.WeightClip < 0 {
		return fmt.Errorf("ratedgrad: negative weight clip %v", c.WeightClip)
	}
	if c.GradClip < 0 {
		return fmt.Errorf("ratedgrad: negative gradient clip %v", c.GradClip)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("ratedgrad: batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.Epochs < 0 {
		return fmt.Errorf("ratedgrad: negative epochs %d", c.Epochs)
	}
	if c.RateAlpha <= 0 || c.RateAlpha > 1 {
		return fmt.Errorf("ratedgrad: rate alpha %v outside (0,1]", c.RateAlpha)
	}
	return c.Intrinsic.Validate()
}
