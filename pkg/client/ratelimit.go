package client

import "golang.org/x/time/rate"

// RateLimiter groups limiters by CLOB endpoint category. The venue
// publishes limits per 10-second window; capacities are the window burst
// allowance, rates 1/10th of it for smooth refill.
type RateLimiter struct {
	Order  *rate.Limiter // POST /orders
	Cancel *rate.Limiter // DELETE /orders, /cancel-all, /cancel-market-orders
	Book   *rate.Limiter // GET /book and other reads
}

// NewRateLimiter creates limiters tuned to the venue's published limits.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Order:  rate.NewLimiter(50, 350), // 3500 per 10s window
		Cancel: rate.NewLimiter(30, 300), // 3000 per 10s window
		Book:   rate.NewLimiter(15, 150), // 1500 per 10s window
	}
}
