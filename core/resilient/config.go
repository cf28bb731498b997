package resilient

import "time"

// Config holds the retry settings shared by the store client and the remote target.
type Config struct {
	// MaxAttempts is the number of reconnect attempts per call chain.
	MaxAttempts int `mapstructure:"max_attempts" default:"5"`
	// BackoffMS is the fixed delay between attempts in milliseconds.
	BackoffMS int `mapstructure:"backoff_ms" default:"500"`
}

// Policy converts the config, falling back to the defaults for unset values.
func (c Config) Policy() Policy {
	p := DefaultPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.BackoffMS > 0 {
		p.Backoff = time.Duration(c.BackoffMS) * time.Millisecond
	}
	return p
}
