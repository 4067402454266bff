package rate_limiter

// Decision is the outcome of one limit evaluation.
type Decision struct {
	Exceeded   bool   `json:"rate_limit_exceeded"`
	Policy     string `json:"policy"` // emergency, admin, mutating, default, contact
	Limit      int64  `json:"limit"`
	Count      int64  `json:"current_count"`
	Remaining  int64  `json:"remaining"`
	ResetAt    int64  `json:"reset_at"`
	RetryAfter int    `json:"retry_after"` // in seconds
}
