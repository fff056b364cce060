package usecase

import (
	"sync"

	"ChartSync/internal/domain/models"
)

// DirtyFlagGate suppresses redundant pushes to the rendering surface. It
// holds the last-forwarded tail snapshot and forwards only on a genuine
// field-by-field difference. Pure comparison; it never mutates the store.
type DirtyFlagGate struct {
	mu      sync.Mutex
	last    models.Candle
	hasLast bool
}

func NewDirtyFlagGate() *DirtyFlagGate {
	return &DirtyFlagGate{}
}

// Changed compares tail against the last-forwarded snapshot. On a difference
// the snapshot is updated and true is returned.
func (g *DirtyFlagGate) Changed(tail models.Candle) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hasLast && g.last.Equal(tail) {
		return false
	}
	g.last = tail
	g.hasLast = true
	return true
}

// Reset clears the snapshot, e.g. when the active series key changes.
func (g *DirtyFlagGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasLast = false
	g.last = models.Candle{}
}
