package ports

import (
	"context"
	"time"
)

// HealthChecker checks external dependency health.
type HealthChecker interface {
	// Ping verifies connectivity. Returns nil if healthy.
	Ping(ctx context.Context) error
	// Name returns the dependency name (e.g., "postgresql", "redis").
	Name() string
}

// Probe is a HealthChecker built from a ping function. Each ping is bounded
// by timeout so one hung dependency cannot stall /health.
type Probe struct {
	name    string
	timeout time.Duration
	ping    func(ctx context.Context) error
}

// NewProbe creates a Probe. A zero timeout leaves ctx untouched.
func NewProbe(name string, timeout time.Duration, ping func(ctx context.Context) error) Probe {
	return Probe{name: name, timeout: timeout, ping: ping}
}

// Ping runs the probe.
func (p Probe) Ping(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.ping(ctx)
}

// Name returns the dependency name.
func (p Probe) Name() string { return p.name }
