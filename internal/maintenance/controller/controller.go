// Package controller implements the maintenance domain engine: the
// equipment registry, the team directory, the maintenance request
// lifecycle and the scheduling projections built on top of it. Services
// orchestrate repository operations, cache invalidation and event
// production; the database stays the only source of truth.
package controller

import (
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/cache"
	"github.com/gartstein/maintenance/internal/maintenance/events"
	"github.com/gartstein/maintenance/internal/maintenance/metrics"
	"go.uber.org/zap"
)

// DefaultCacheTTL bounds how stale a cached listing may get.
const DefaultCacheTTL = 30 * time.Second

type EventProducer interface {
	Produce(event events.Event)
}

type options struct {
	cache    cache.Store
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures the optional collaborators of a service.
type Option func(*options)

// WithCache enables read-through caching of listings.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = store
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock replaces time.Now, used for overdue flags and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{cacheTTL: DefaultCacheTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func produce(producer EventProducer, logger *zap.Logger, event events.Event) {
	if producer == nil {
		return
	}
	producer.Produce(event)
	logger.Debug("Event produced",
		zap.String("event_type", string(event.Type)),
		zap.String("entity_id", event.EntityID.String()),
	)
}
