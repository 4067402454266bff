package threat

import "time"

type Tier string

const (
	TierTrusted    Tier = "trusted"
	TierClean      Tier = "clean"
	TierSuspicious Tier = "suspicious"
	TierMalicious  Tier = "malicious"
)

const (
	ReasonPrivate          = "private_ip"
	ReasonWhitelisted      = "whitelisted"
	ReasonInsufficientData = "insufficient_data"
	ReasonHistory          = "history_analysis"
	ReasonInvalidIP        = "invalid_ip"
)

type Reputation struct {
	IP         string    `json:"ip"`
	Tier       Tier      `json:"tier"`
	Reason     string    `json:"reason"`
	Score      int       `json:"score"`
	ComputedAt time.Time `json:"computed_at"`
}

// HistoryEntry is one tracked response for an address.
type HistoryEntry struct {
	Path   string `json:"path"`
	Status int    `json:"status"`
	At     int64  `json:"at"`
}
