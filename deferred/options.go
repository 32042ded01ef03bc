package deferred

// config holds resolved Synchronise options. Grounded on the teacher's
// options.go functional-options pattern (loopOptions/LoopOption), generalised
// from the teacher's strict-ordering/fast-path/metrics toggles to this
// engine's own knobs.
type config struct {
	logger         Logger
	externalBuffer int
}

// Option configures a Synchronise (or SynchroniseContext) call.
type Option func(*config)

// WithLogger installs a diagnostic Logger for the barrier's loop. Defaults
// to a no-op logger.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithExternalBuffer sets the capacity of the loop's cross-thread wakeup
// channel (see Loop.Wakeup). Adapters that settle from background
// goroutines send through this channel; a too-small buffer just adds
// backpressure on the adapter goroutine, never a correctness problem.
// Defaults to 1024.
func WithExternalBuffer(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.externalBuffer = n
		}
	}
}

func resolveConfig(opts []Option) *config {
	c := &config{logger: noopLogger{}, externalBuffer: 1024}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	return c
}
