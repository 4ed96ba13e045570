package probe

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// minJitterDelay is the floor applied to jittered delays.
const minJitterDelay = 100 * time.Millisecond

// Backoff produces exponentially growing retry delays with full jitter.
type Backoff struct {
	mu            sync.Mutex
	initialDelay  time.Duration
	maxDelay      time.Duration
	currentDelay  time.Duration
	attemptCount  int
	multiplier    float64
	jitterEnabled bool
	logger        *zap.Logger
}

// BackoffStats is a snapshot of a Backoff.
type BackoffStats struct {
	AttemptCount int           `json:"attempt_count"`
	CurrentDelay time.Duration `json:"current_delay"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	IsAtMaxDelay bool          `json:"is_at_max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewBackoff returns a Backoff that doubles from initialDelay up to maxDelay.
func NewBackoff(initialDelay, maxDelay time.Duration, logger *zap.Logger) *Backoff {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backoff{
		initialDelay:  initialDelay,
		maxDelay:      maxDelay,
		currentDelay:  initialDelay,
		multiplier:    2.0,
		jitterEnabled: true,
		logger:        logger,
	}
}

// Next returns the delay to wait before the next attempt. The first call
// returns the initial delay; later calls grow it up to the cap.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attemptCount > 0 {
		next := time.Duration(float64(b.currentDelay) * b.multiplier)
		if next > b.maxDelay {
			next = b.maxDelay
		}
		b.currentDelay = next
	}
	b.attemptCount++

	delay := b.currentDelay
	if b.jitterEnabled {
		delay = jitter(delay)
	}

	b.logger.Debug("Calculated retry delay",
		zap.Duration("base_delay", b.currentDelay),
		zap.Duration("final_delay", delay),
		zap.Int("attempt", b.attemptCount),
		zap.Bool("at_max_delay", b.currentDelay >= b.maxDelay))

	return delay
}

// Reset returns to the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentDelay = b.initialDelay
	b.attemptCount = 0
}

// SetJitterEnabled turns jitter on or off.
func (b *Backoff) SetJitterEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jitterEnabled = enabled
}

// SetMultiplier changes the growth factor. Values <= 1 are ignored.
func (b *Backoff) SetMultiplier(multiplier float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if multiplier > 1.0 {
		b.multiplier = multiplier
	}
}

// Stats returns a snapshot of the current state.
func (b *Backoff) Stats() BackoffStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BackoffStats{
		AttemptCount: b.attemptCount,
		CurrentDelay: b.currentDelay,
		InitialDelay: b.initialDelay,
		MaxDelay:     b.maxDelay,
		IsAtMaxDelay: b.currentDelay >= b.maxDelay,
		Multiplier:   b.multiplier,
	}
}

// jitter picks a delay in [minJitterDelay, delay).
func jitter(delay time.Duration) time.Duration {
	if delay <= minJitterDelay {
		return minJitterDelay
	}
	d := time.Duration(rand.Int63n(int64(delay)))
	if d < minJitterDelay {
		d = minJitterDelay
	}
	return d
}
