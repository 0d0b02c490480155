package ratedgrad

import "math"

type moments struct {
	m, v float64
}

// optimizer holds per-edge update state. The step counter drives Adam bias
// correction and increments once per batch.
type optimizer struct {
	cfg  Config
	step int
	mom  map[edgeKey]moments
}

func newOptimizer(cfg Config) *optimizer {
	return &optimizer{cfg: cfg, mom: make(map[edgeKey]moments)}
}

// beginStep advances the shared step counter before a batch of updates.
func (o *optimizer) beginStep() { o.step++ }

// update returns the new weight for one edge given its averaged gradient.
func (o *optimizer) update(key edgeKey, w, grad float64) float64 {
	lr := o.cfg.LearningRate
	wd := o.cfg.WeightDecay

	switch o.cfg.Optimizer {
	case OptSGD:
		w -= lr * grad
		w -= wd * w
	case OptAdam:
		w -= lr * o.adamDirection(key, grad)
		w -= wd * w
	case OptAdamW:
		w *= 1 - lr*wd
		w -= lr * o.adamDirection(key, grad)
	}
	return w
}

func (o *optimizer) adamDirection(key edgeKey, grad float64) float64 {
	st := o.mom[key]
	st.m = o.cfg.Beta1*st.m + (1-o.cfg.Beta1)*grad
	st.v = o.cfg.Beta2*st.v + (1-o.cfg.Beta2)*grad*grad
	o.mom[key] = st

	mHat := st.m / (1 - math.Pow(o.cfg.Beta1, float64(o.step)))
	vHat := st.v / (1 - math.Pow(o.cfg.Beta2, float64(o.step)))
	return mHat / (math.Sqrt(vHat) + o.cfg.Epsilon)
}

// forget drops moment state for edges that no longer exist.
func (o *optimizer) forget(alive func(edgeKey) bool) {
	for key := range o.mom {
		if !alive(key) {
			delete(o.mom, key)
		}
	}
}
