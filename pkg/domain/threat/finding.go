package threat

// Kind groups signature families.
type Kind string

const (
	KindMalware  Kind = "malware"
	KindTrojan   Kind = "trojan"
	KindAdvanced Kind = "advanced"
)

// Source is the part of the request a finding was matched in.
type Source string

const (
	SourcePath      Source = "path"
	SourceQuery     Source = "query"
	SourceUserAgent Source = "user_agent"
	SourceReferer   Source = "referer"
	SourceBody      Source = "body"
	SourceTiming    Source = "timing"
)

// Finding is one matched signature. It lives only for the current request.
type Finding struct {
	Kind        Kind     `json:"type"`
	Family      string   `json:"family"`
	Pattern     string   `json:"pattern,omitempty"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Source      Source   `json:"source,omitempty"`
}
