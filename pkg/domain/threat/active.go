package threat

// ActiveThreat is an ongoing condition surfaced to operators.
type ActiveThreat struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	SourceIP    string   `json:"source_ip,omitempty"`
	Description string   `json:"description"`
	Mitigation  string   `json:"mitigation"`
	ExpiresIn   int64    `json:"expires_in_seconds,omitempty"`
}
