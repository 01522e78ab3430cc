package services

import (
	"math"
	"sync/atomic"
)

// VisibilityPolicy decides whether content is shown in default listings.
// An item is hidden when its score is strictly below the threshold.
// The threshold can be swapped at runtime by the config watcher.
type VisibilityPolicy struct {
	threshold atomic.Uint64
}

// NewVisibilityPolicy creates a policy with the given hide threshold
func NewVisibilityPolicy(threshold float64) *VisibilityPolicy {
	p := &VisibilityPolicy{}
	p.SetThreshold(threshold)
	return p
}

// Threshold returns the current hide threshold
func (p *VisibilityPolicy) Threshold() float64 {
	return math.Float64frombits(p.threshold.Load())
}

// SetThreshold replaces the hide threshold
func (p *VisibilityPolicy) SetThreshold(threshold float64) {
	p.threshold.Store(math.Float64bits(threshold))
}

// IsVisible reports whether an item with the given score is shown by default
func (p *VisibilityPolicy) IsVisible(score int) bool {
	return float64(score) >= p.Threshold()
}

// IsHidden is the negation of IsVisible
func (p *VisibilityPolicy) IsHidden(score int) bool {
	return !p.IsVisible(score)
}

// Shown reports whether an item appears in a listing, honouring the moderator override.
func (p *VisibilityPolicy) Shown(score int, includeHidden bool) bool {
	return includeHidden || p.IsVisible(score)
}
