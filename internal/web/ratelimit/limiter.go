// Package ratelimit limits how often one API key or client may call the SQL
// endpoint
package ratelimit

import (
	"context"
	"time"
)

// RateLimiter decides whether one more request for key fits in its budget
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*RateLimitInfo, error)
}

// RateLimitInfo describes the budget of a key after a call to Allow
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}
