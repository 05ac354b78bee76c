package polling

import "time"

// Default polling parameters. Everything here is overridable from the
// polling section of config.yaml; the defaults trade sub-second
// responsiveness during playback against request volume at rest.
const (
	DefaultBaseInterval       = 1 * time.Second
	DefaultIdleMultiplier     = 5
	DefaultTopologyMultiplier = 15
	DefaultHealthMultiplier   = 60
	DefaultIdleTimeout        = 10 * time.Minute
	DefaultMaxFailures        = 3
	DefaultMaxBackoff         = 2 * time.Minute
	DefaultPollTimeout        = 5 * time.Second
)

// Config contains the adaptive polling parameters.
type Config struct {
	// BaseInterval is the poll period while a speaker is actively playing.
	BaseInterval time.Duration

	// IdleMultiplier scales BaseInterval once playback has been idle.
	IdleMultiplier int

	// TopologyMultiplier scales BaseInterval for the independent
	// topology re-poll that catches group membership drift.
	TopologyMultiplier int

	// HealthMultiplier scales BaseInterval for the low-churn attribute
	// poll (name, firmware).
	HealthMultiplier int

	// IdleTimeout is how long after the last observed playback activity
	// a speaker is still treated as potentially playing.
	IdleTimeout time.Duration

	// MaxFailures is the number of consecutive poll failures after which
	// a speaker is marked unreachable.
	MaxFailures int

	// MaxBackoff caps the exponential failure backoff.
	MaxBackoff time.Duration

	// PollTimeout bounds each individual poll request.
	PollTimeout time.Duration
}

// DefaultConfig returns a Config with the default parameters.
func DefaultConfig() Config {
	return Config{
		BaseInterval:       DefaultBaseInterval,
		IdleMultiplier:     DefaultIdleMultiplier,
		TopologyMultiplier: DefaultTopologyMultiplier,
		HealthMultiplier:   DefaultHealthMultiplier,
		IdleTimeout:        DefaultIdleTimeout,
		MaxFailures:        DefaultMaxFailures,
		MaxBackoff:         DefaultMaxBackoff,
		PollTimeout:        DefaultPollTimeout,
	}
}

// withDefaults fills zero values so a partially populated Config cannot
// produce a spin loop.
func (c Config) withDefaults() Config {
	if c.BaseInterval <= 0 {
		c.BaseInterval = DefaultBaseInterval
	}
	if c.IdleMultiplier <= 0 {
		c.IdleMultiplier = DefaultIdleMultiplier
	}
	if c.TopologyMultiplier <= 0 {
		c.TopologyMultiplier = DefaultTopologyMultiplier
	}
	if c.HealthMultiplier <= 0 {
		c.HealthMultiplier = DefaultHealthMultiplier
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = DefaultMaxFailures
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	return c
}

// idleInterval is the poll period once playback has gone quiet.
func (c Config) idleInterval() time.Duration {
	return c.BaseInterval * time.Duration(c.IdleMultiplier)
}

// topologyInterval is the period of the group-drift re-poll.
func (c Config) topologyInterval() time.Duration {
	return c.BaseInterval * time.Duration(c.TopologyMultiplier)
}

// healthInterval is the period of the low-churn attribute poll.
func (c Config) healthInterval() time.Duration {
	return c.BaseInterval * time.Duration(c.HealthMultiplier)
}
