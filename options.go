package unison

import "github.com/sirupsen/logrus"

// config holds configuration options for a SharedValue.
type config struct {
	log logrus.FieldLogger
}

// Option configures a SharedValue.
type Option func(*config)

// WithLogger sets the logger used for listener faults and teardown
// diagnostics. Each SharedValue owns its logger; nothing is logged through
// a process-wide default unless this option is omitted.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = log
	}
}
