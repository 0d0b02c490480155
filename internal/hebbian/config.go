package hebbian

import (
	"fmt"

	"spikelab/internal/checkpoint"
	"spikelab/internal/plasticity"
)

// PostMode selects the postsynaptic factor of the eligibility product.
type PostMode string

const (
	// PostSpike uses the target's fired indicator.
	PostSpike PostMode = "spike"
	// PostRate uses the target's EMA firing rate for smoother credit.
	PostRate PostMode = "rate"
)

// RewardMode selects how episode metrics map to the scalar reward.
type RewardMode string

const (
	RewardBinary         RewardMode = "binary"
	RewardMarginLinear   RewardMode = "margin_linear"
	RewardSoftplusMargin RewardMode = "softplus_margin"
)

// Gate restricts which edges an episode's update may touch.
type Gate string

const (
	GateNone       Gate = "none"
	GateWinnerOnly Gate = "winner_only"
	GateTargetOnly Gate = "target_only"
)

// Metric names the value watched by the revert trigger.
type Metric string

const (
	MetricAccuracy Metric = "accuracy"
	MetricMargin   Metric = "margin"
)

type Config struct {
	LearningRate float64  `json:"learning_rate"`
	TraceDecay   float64  `json:"trace_decay"`
	Post         PostMode `json:"post_mode"`

	Reward        RewardMode `json:"reward_mode"`
	RewardCorrect float64    `json:"reward_correct"`
	RewardWrong   float64    `json:"reward_wrong"`
	MarginGain    float64    `json:"margin_gain"`
	SoftplusGain  float64    `json:"softplus_gain"`
	MarginDelta   float64    `json:"margin_delta"`

	BaselineEnable bool    `json:"baseline_enable"`
	BaselineBeta   float64 `json:"baseline_beta"`

	NoUpdateIfSatisfied bool    `json:"no_update_if_satisfied"`
	SatisfiedMargin     float64 `json:"satisfied_margin"`

	UpdateGate Gate `json:"update_gate"`

	WeightDecay float64 `json:"weight_decay"`
	WeightClip  float64 `json:"weight_clip"`

	UsageBoost        bool    `json:"usage_boost"`
	UsageLearningRate float64 `json:"usage_learning_rate"`

	BatchSize int `json:"batch_size"`
	Epochs    int `json:"epochs"`

	PruneEpsilon  float64 `json:"prune_epsilon"`
	PrunePatience int     `json:"prune_patience"`
	GrowEdges     int     `json:"grow_edges"`
	InitWeight    float64 `json:"init_weight"`

	InactiveRateThreshold float64 `json:"inactive_rate_threshold"`
	InactiveRatePatience  int     `json:"inactive_rate_patience"`
	InactivePruneMax      int     `json:"inactive_prune_max"`
	InactivePruneIncoming bool    `json:"inactive_prune_incoming"`
	InactivePruneOutgoing bool    `json:"inactive_prune_outgoing"`

	Intrinsic plasticity.IntrinsicConfig `json:"intrinsic"`

	RateAlpha float64 `json:"rate_alpha"`

	CheckpointEnable bool   `json:"checkpoint_enable"`
	LadderCaps       [3]int `json:"ladder_caps"`
	RevertEnable     bool   `json:"revert_enable"`
	RevertMetric     Metric `json:"revert_metric"`
	RevertWindow     int    `json:"revert_window"`
	RevertDrop       float64 `json:"revert_drop"`

	Seed int64 `json:"seed"`
}

// DefaultConfig returns the stock three-factor learner settings.
func DefaultConfig() Config {
	return Config{
		LearningRate:  0.05,
		TraceDecay:    0.9,
		Post:          PostSpike,
		Reward:        RewardBinary,
		RewardCorrect: 1.0,
		RewardWrong:   1.0,
		MarginGain:    4.0,
		SoftplusGain:  6.0,
		MarginDelta:   0.05,
		BaselineBeta:  0.05,
		UpdateGate:    GateNone,
		WeightClip:    10.0,
		BatchSize:     8,
		Epochs:        10,
		PruneEpsilon:  0.01,
		PrunePatience: 3,
		InitWeight:    0.5,

		InactiveRateThreshold: 0.01,
		InactiveRatePatience:  3,
		InactivePruneMax:      2,

		RateAlpha: 0.05,

		LadderCaps:   checkpoint.DefaultCaps,
		RevertMetric: MetricAccuracy,
		RevertWindow: 1,
		RevertDrop:   0.15,

		Seed: 1,
	}
}

func (c Config) validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("hebbian: learning rate must be positive, got %v", c.LearningRate)
	}
	if c.TraceDecay < 0 || c.TraceDecay >= 1 {
		return fmt.Errorf("hebbian: trace decay %v outside [0,1)", c.TraceDecay)
	}
	switch c.Post {
	case PostSpike, PostRate:
	default:
		return fmt.Errorf("hebbian: unknown post mode %q", c.Post)
	}
	switch c.Reward {
	case RewardBinary, RewardMarginLinear, RewardSoftplusMargin:
	default:
		return fmt.Errorf("hebbian: unknown reward mode %q", c.Reward)
	}
	switch c.UpdateGate {
	case GateNone, GateWinnerOnly, GateTargetOnly:
	default:
		return fmt.Errorf("hebbian: unknown update gate %q", c.UpdateGate)
	}
	switch c.RevertMetric {
	case MetricAccuracy, MetricMargin:
	default:
		return fmt.Errorf("hebbian: unknown revert metric %q", c.RevertMetric)
	}
	if c.BaselineEnable && (c.BaselineBeta <= 0 || c.BaselineBeta > 1) {
		return fmt.Errorf("hebbian: baseline beta %v outside (0,1]", c.BaselineBeta)
	}
	if c.WeightDecay < 0 || c.WeightDecay >= 1 {
		return fmt.Errorf("hebbian: weight decay %v outside [0,1)", c.WeightDecay)
	}
	if c.WeightClip < 0 {
		return fmt.Errorf("hebbian: negative weight clip %v", c.WeightClip)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("hebbian: batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.Epochs < 0 {
		return fmt.Errorf("hebbian: negative epochs %d", c.Epochs)
	}
	if c.UsageBoost && c.UsageLearningRate <= 0 {
		return fmt.Errorf("hebbian: usage boost needs a positive usage learning rate")
	}
	if c.RateAlpha <= 0 || c.RateAlpha > 1 {
		return fmt.Errorf("hebbian: rate alpha %v outside (0,1]", c.RateAlpha)
	}
	if err := c.Intrinsic.Validate(); err != nil {
		return err
	}
	return nil
}
