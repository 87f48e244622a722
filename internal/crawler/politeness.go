package crawler

import (
	"context"
	"time"
)

const (
	// DefaultBatchSize is the number of items between two batch cooldowns.
	DefaultBatchSize = 10
	// DefaultBatchCooldown is the pause taken at every batch boundary.
	DefaultBatchCooldown = 20 * time.Second
)

// Pacer enforces the batch cooldown between items. The cooldown applies
// regardless of whether earlier items succeeded.
type Pacer struct {
	batchSize int
	cooldown  time.Duration
	pauser    Pauser
}

// NewPacer builds a Pacer. A batchSize <= 0 disables cooldowns.
func NewPacer(batchSize int, cooldown time.Duration, pauser Pauser) *Pacer {
	return &Pacer{
		batchSize: batchSize,
		cooldown:  cooldown,
		pauser:    pauser,
	}
}

// Due reports whether a cooldown precedes the zero-based item index.
func (p *Pacer) Due(index int) bool {
	if p == nil || p.batchSize <= 0 {
		return false
	}
	return index > 0 && index%p.batchSize == 0
}

// Cooldown returns the configured batch pause.
func (p *Pacer) Cooldown() time.Duration {
	if p == nil {
		return 0
	}
	return p.cooldown
}

// Before blocks for the cooldown when one is due before index. It returns true
// when a cooldown was taken.
func (p *Pacer) Before(ctx context.Context, index int) (bool, error) {
	if !p.Due(index) {
		return false, nil
	}
	if err := p.pauser.Pause(ctx, p.cooldown); err != nil {
		return false, err
	}
	return true, nil
}
