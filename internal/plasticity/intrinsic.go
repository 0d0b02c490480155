package plasticity

import (
	"fmt"

	"spikelab/internal/network"
)

// IntrinsicConfig controls the homeostatic threshold and leak drift that
// pulls each neuron's firing rate toward a target.
type IntrinsicConfig struct {
	EtaThreshold float64 `json:"eta_threshold"`
	EtaLeak      float64 `json:"eta_leak"`
	TargetRate   float64 `json:"target_rate"`
}

func (c IntrinsicConfig) Validate() error {
	if c.EtaThreshold < 0 || c.EtaLeak < 0 {
		return fmt.Errorf("intrinsic: negative learning rate (theta=%v leak=%v)", c.EtaThreshold, c.EtaLeak)
	}
	if c.TargetRate < 0 || c.TargetRate > 1 {
		return fmt.Errorf("intrinsic: target rate %v outside [0,1]", c.TargetRate)
	}
	return nil
}

// Enabled reports whether either drift term is active.
func (c IntrinsicConfig) Enabled() bool {
	return c.EtaThreshold > 0 || c.EtaLeak > 0
}

// Apply drifts thresholds up for overactive neurons and leak up for
// underactive ones. Sensory neurons are skipped; they are driven, not
// regulated.
func (c IntrinsicConfig) Apply(nw *network.Network, rates map[string]float64) {
	for _, id := range nw.IDs() {
		if network.RoleOf(id) == network.RoleSensory {
			continue
		}
		n := nw.Neuron(id)
		r := rates[id]
		n.Threshold += c.EtaThreshold * (r - c.TargetRate)
		l := n.Leak + c.EtaLeak*(c.TargetRate-r)
		if l < 0 {
			l = 0
		} else if l > 1 {
			l = 1
		}
		n.Leak = l
	}
}
