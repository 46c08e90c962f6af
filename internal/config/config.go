// Package config holds the validated runtime configuration for the server,
// assembled from the "server run" command's flags.
package config

import "fmt"

// Config is the full set of knobs accepted by "tidesim server run".
type Config struct {
	Port      uint16
	Token     string
	Directory string

	ConsistencyBoundMin uint32
	ConsistencyBoundMax uint32

	Verbose bool

	MetricsAddr      string
	SubscriberBuffer int
}

const (
	// MaxKeyBytes and MaxValueBytes are fixed by the external contract
	// (spec.md §4.1 "Configuration"), not CLI-tunable.
	MaxKeyBytes   = 512
	MaxValueBytes = 20 << 20 // 20 MiB
	MaxNameBytes  = 512

	// WriteRatePerKeySeconds is the per-key write cooldown (spec.md §4.1).
	WriteRatePerKeySeconds = 1

	defaultSubscriberBuffer = 128
)

// Validate checks range and consistency constraints, returning a descriptive
// error the CLI layer surfaces with exit code 2.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("--token is required")
	}
	if c.Directory == "" {
		return fmt.Errorf("--directory is required")
	}
	if c.ConsistencyBoundMin > c.ConsistencyBoundMax {
		return fmt.Errorf("--consistency-bound-min (%d) must be <= --consistency-bound-max (%d)", c.ConsistencyBoundMin, c.ConsistencyBoundMax)
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = defaultSubscriberBuffer
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9095"
	}
	return nil
}
