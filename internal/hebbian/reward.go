package hebbian

import (
	"math"

	"spikelab/internal/model"
)

// targetMargin is the rate advantage of the target over its strongest
// rival. Negative when the target is losing.
func targetMargin(rates map[string]float64, target string) float64 {
	best := 0.0
	for id, r := range rates {
		if id == target {
			continue
		}
		if r > best {
			best = r
		}
	}
	return rates[target] - best
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// reward maps episode metrics to a scalar in [-1, 1] range conventions:
// binary pays out only when the winner clears the margin threshold, the
// margin modes shape the target advantage. Softplus shaping falls off as
// the margin exceeds the threshold.
func (t *Trainer) reward(m model.EpisodeMetrics, target string) float64 {
	switch t.cfg.Reward {
	case RewardMarginLinear:
		return clamp(t.cfg.MarginGain*targetMargin(m.Rates, target), -1, 1)
	case RewardSoftplusMargin:
		delta := targetMargin(m.Rates, target)
		s := 1.0 / (1.0 + math.Exp(-t.cfg.SoftplusGain*(t.cfg.MarginDelta-delta)))
		return clamp(2*s-1, -1, 1)
	default: // RewardBinary
		if m.Winner == target && m.Margin >= t.cfg.MarginDelta {
			return t.cfg.RewardCorrect
		}
		return -t.cfg.RewardWrong
	}
}

// advantage subtracts the running baseline when enabled and folds the raw
// reward into the baseline estimate.
func (t *Trainer) advantage(r float64) float64 {
	if !t.cfg.BaselineEnable {
		return r
	}
	used := r - t.baseline
	t.baseline = (1-t.cfg.BaselineBeta)*t.baseline + t.cfg.BaselineBeta*r
	return used
}
