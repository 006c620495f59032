package ratelimit

import (
	"sync"
	"time"
)

// LimitResult contains the result of a rate limit check
type LimitResult struct {
	Allowed    bool          // Whether the request is allowed
	RetryAfter time.Duration // Suggested wait time if not allowed
	LimitType  string        // "global" or route name
	Remaining  float64       // Remaining tokens in the relevant bucket
}

// Limiter manages rate limiting with global and per-route buckets
type Limiter struct {
	mu           sync.RWMutex
	enabled      bool
	globalBucket *Bucket
	routeBuckets map[string]*Bucket
	config       *Config
	metrics      *Metrics
}

// NewLimiter creates a new rate limiter from configuration
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Limiter{
		enabled:      cfg.Enabled,
		routeBuckets: make(map[string]*Bucket),
		config:       cfg,
		metrics:      NewMetrics(),
	}

	// Create global bucket
	l.globalBucket = NewBucket(
		float64(cfg.Global.BurstSize),
		cfg.Global.RequestsPerSecond,
	)

	// Create per-route buckets
	for _, routeLimit := range cfg.Routes {
		l.routeBuckets[routeLimit.Name] = NewBucket(
			float64(routeLimit.BurstSize),
			routeLimit.RequestsPerSecond,
		)
	}

	return l
}

// Allow checks if a request for the given route is allowed
// Returns a LimitResult with the decision and metadata
func (l *Limiter) Allow(route string) *LimitResult {
	if !l.enabled {
		return &LimitResult{
			Allowed:   true,
			LimitType: "disabled",
			Remaining: -1,
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	// Check global limit first
	if !l.globalBucket.TryConsume(1) {
		retryAfter := l.globalBucket.TimeToWait(1)
		l.metrics.RecordRejection("global", route)
		return &LimitResult{
			Allowed:    false,
			RetryAfter: retryAfter,
			LimitType:  "global",
			Remaining:  l.globalBucket.Tokens(),
		}
	}

	// Check route-specific limit if configured
	if routeBucket, exists := l.routeBuckets[route]; exists {
		if !routeBucket.TryConsume(1) {
			// Refund the global token since we're rejecting
			l.globalBucket.Refund(1)
			retryAfter := routeBucket.TimeToWait(1)
			l.metrics.RecordRejection(route, route)
			return &LimitResult{
				Allowed:    false,
				RetryAfter: retryAfter,
				LimitType:  route,
				Remaining:  routeBucket.Tokens(),
			}
		}
		l.metrics.RecordAllowed(route)
		return &LimitResult{
			Allowed:   true,
			LimitType: route,
			Remaining: routeBucket.Tokens(),
		}
	}

	// No route-specific limit, global check passed
	l.metrics.RecordAllowed(route)
	return &LimitResult{
		Allowed:   true,
		LimitType: "global",
		Remaining: l.globalBucket.Tokens(),
	}
}

// IsEnabled returns whether rate limiting is enabled
func (l *Limiter) IsEnabled() bool {
	return l.enabled
}

// SetEnabled enables or disables rate limiting
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// GetMetrics returns the current metrics
func (l *Limiter) GetMetrics() *Metrics {
	return l.metrics
}

// GetRouteBucket returns the bucket for a specific route (for testing)
func (l *Limiter) GetRouteBucket(route string) *Bucket {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.routeBuckets[route]
}

// GetGlobalBucket returns the global bucket (for testing)
func (l *Limiter) GetGlobalBucket() *Bucket {
	return l.globalBucket
}

// Reset resets all buckets to full capacity
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.globalBucket.Reset()
	for _, bucket := range l.routeBuckets {
		bucket.Reset()
	}
}

// Stats returns current limiter statistics
type Stats struct {
	Enabled      bool               `json:"enabled"`
	GlobalTokens float64            `json:"global_tokens"`
	RouteTokens  map[string]float64 `json:"route_tokens"`
}

// GetStats returns current limiter statistics
func (l *Limiter) GetStats() *Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &Stats{
		Enabled:      l.enabled,
		GlobalTokens: l.globalBucket.Tokens(),
		RouteTokens:  make(map[string]float64),
	}

	for name, bucket := range l.routeBuckets {
		stats.RouteTokens[name] = bucket.Tokens()
	}

	return stats
}
