// Package checkpoint keeps a rolling ladder of network snapshots so a
// trainer can roll back when a watched metric collapses.
package checkpoint

import (
	"fmt"

	"spikelab/internal/model"
)

// Entry pairs a snapshot with the epoch and metric value at capture time.
type Entry struct {
	Snapshot model.NetSnapshot `json:"snapshot"`
	Epoch    int               `json:"epoch"`
	Metric   float64           `json:"metric"`
}

// Ladder is three FIFO rungs. New snapshots land on the first rung; when a
// rung overflows its oldest entry promotes to the next, and the last rung
// drops its oldest. Reverting pops newest-first, first rung first.
type Ladder struct {
	caps  [3]int
	rungs [3][]Entry
}

// DefaultCaps mirrors the usual ladder shape: four recent, two mid, one
// deep.
var DefaultCaps = [3]int{4, 2, 1}

func NewLadder(caps [3]int) (*Ladder, error) {
	for i, c := range caps {
		if c <= 0 {
			return nil, fmt.Errorf("ladder: rung %d capacity must be positive, got %d", i, c)
		}
	}
	return &Ladder{caps: caps}, nil
}

// Push records a snapshot on the first rung, cascading overflow.
func (l *Ladder) Push(e Entry) {
	l.rungs[0] = append(l.rungs[0], e)
	for i := 0; i < len(l.rungs); i++ {
		if len(l.rungs[i]) <= l.caps[i] {
			break
		}
		oldest := l.rungs[i][0]
		l.rungs[i] = l.rungs[i][1:]
		if i+1 < len(l.rungs) {
			l.rungs[i+1] = append(l.rungs[i+1], oldest)
		}
		// The deepest rung simply drops its oldest.
	}
}

// Pop removes and returns the most recent entry, searching the first rung
// first. The second return is false when every rung is empty.
func (l *Ladder) Pop() (Entry, bool) {
	for i := 0; i < len(l.rungs); i++ {
		if n := len(l.rungs[i]); n > 0 {
			e := l.rungs[i][n-1]
			l.rungs[i] = l.rungs[i][:n-1]
			return e, true
		}
	}
	return Entry{}, false
}

// Len reports the total number of stored entries.
func (l *Ladder) Len() int {
	total := 0
	for _, r := range l.rungs {
		total += len(r)
	}
	return total
}

// RungLens reports per-rung occupancy, first rung first.
func (l *Ladder) RungLens() [3]int {
	var out [3]int
	for i, r := range l.rungs {
		out[i] = len(r)
	}
	return out
}

// ShouldRevert implements the metric-drop trigger: with a history of the
// watched metric, revert when the value from `window` epochs ago exceeds
// the latest by at least `drop`.
func ShouldRevert(history []float64, window int, drop float64) bool {
	if window <= 0 || drop <= 0 {
		return false
	}
	if len(history) < window+1 {
		return false
	}
	prev := history[len(history)-1-window]
	last := history[len(history)-1]
	return prev-last >= drop
}
