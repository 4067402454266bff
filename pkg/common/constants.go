package common

const (
	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"
	RetryAfterHeader         = "Retry-After"
	DDoSProtectionHeader     = "X-DDoS-Protection"
	TraceIDHeader            = "X-Request-Id"

	StaffCookieName = "shield_staff"

	// Metadata keys shared between plugins of one request.
	MetadataRateLimit          = "rate_limit"
	MetadataRateLimitRemaining = "rate_limit_remaining"
	MetadataRateLimitReset     = "rate_limit_reset"
	MetadataEmergency          = "emergency_mode"
	MetadataReport             = "threat_report"
	MetadataReputation         = "ip_reputation"
	MetadataSuspiciousScore    = "suspicious_score"
)
