// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"svcgraph/internal/metrics"

	"github.com/charmbracelet/log"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default writes warnings and errors to stderr.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records construction and teardown with c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) {
		o.metrics = c
	}
}

// WithMaxConcurrency bounds how many independent services are constructed at
// once. Values below 2 construct serially, which is the default.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.maxConcurrency = max(n, 1)
	}
}
