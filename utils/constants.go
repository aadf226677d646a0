package utils

import (
	"time"
)

// Request context keys shared by handlers and middleware
const (
	RequestIDKey = "request_id"
	UserAgentKey = "user_agent"
	IPAddressKey = "ip_address"
	EndpointKey  = "endpoint"
	TimeoutKey   = "timeout"
	UserIDKey    = "user_id"
)

// IdempotencyKeyHeader carries the client idempotency key; it takes precedence over the body field.
const IdempotencyKeyHeader = "Idempotency-Key"

// Request handling
const (
	// DefaultRequestTimeout bounds a single API call
	DefaultRequestTimeout = 30 * time.Second

	// DefaultPageSize is used by history when the client omits pageSize
	DefaultPageSize = 20

	// MaxPageSize caps history page size
	MaxPageSize = 100
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// AccessTokenTTL is the time-to-live for access tokens (24 hours)
const AccessTokenTTL = 24 * time.Hour
