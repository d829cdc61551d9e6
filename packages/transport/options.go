package transport

import (
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/httpbridge/packages/clientpool"
	"github.com/abdul-hamid-achik/httpbridge/packages/export/metrics"
)

// Option configures a transport
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	logger  *zap.Logger
	client  *clientpool.Client
	config  *clientpool.Config
}

// WithMetrics records dispatch and stream metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger overrides the diagnostics logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClient uses c instead of building or sharing one
func WithClient(c *clientpool.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithConfig sets the client configuration. For the async transport it only
// takes effect if the shared client has not been built yet.
func WithConfig(cfg clientpool.Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}

func (o *options) configs() []clientpool.Config {
	if o.config == nil {
		return nil
	}
	return []clientpool.Config{*o.config}
}
