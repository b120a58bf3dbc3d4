package middlewares

import "time"

// LoginRateLimiterConfig guards queue creation at login.
func LoginRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Name:              "login",
		RequestsPerWindow: 10,               // 10 requests
		Window:            time.Minute,      // per minute
		BlockDuration:     time.Minute * 15, // block for 15 minutes
	}
}

// ModerateRateLimiterConfig for normal API endpoints
func ModerateRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Name:              "api",
		RequestsPerWindow: 120,
		Window:            time.Minute,
		BlockDuration:     time.Minute * 5,
	}
}

// MessageSendingRateLimiterConfig for posting messages and files, each of
// which fans out to every listening queue.
func MessageSendingRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Name:              "post",
		RequestsPerWindow: 30,               // 30 messages
		Window:            time.Minute,      // per minute
		BlockDuration:     time.Minute * 10, // block for 10 minutes
	}
}
