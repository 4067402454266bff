package threat

import (
	"sort"
	"time"
)

// RequestMeta describes the request a report was built for.
type RequestMeta struct {
	SourceIP  string
	UserAgent string
	Path      string
	Method    string
	TraceID   string
}

// Report aggregates every finding of one request.
type Report struct {
	Timestamp         time.Time `json:"timestamp"`
	TraceID           string    `json:"trace_id,omitempty"`
	SourceIP          string    `json:"source_ip"`
	UserAgent         string    `json:"user_agent"`
	Path              string    `json:"path"`
	Method            string    `json:"method"`
	Threats           []Finding `json:"threats"`
	Severity          Severity  `json:"severity"`
	ThreatCount       int       `json:"threat_count"`
	RecommendedAction Action    `json:"recommended_action"`
}

// NewReport returns nil when there is nothing to report.
func NewReport(findings []Finding, meta RequestMeta, at time.Time) *Report {
	if len(findings) == 0 {
		return nil
	}
	sev := MaxSeverity(findings)
	return &Report{
		Timestamp:         at.UTC(),
		TraceID:           meta.TraceID,
		SourceIP:          meta.SourceIP,
		UserAgent:         meta.UserAgent,
		Path:              meta.Path,
		Method:            meta.Method,
		Threats:           findings,
		Severity:          sev,
		ThreatCount:       len(findings),
		RecommendedAction: ActionFor(sev),
	}
}

// Families lists the distinct families in the report, sorted.
func (r *Report) Families() []string {
	seen := make(map[string]struct{}, len(r.Threats))
	var out []string
	for _, f := range r.Threats {
		if _, ok := seen[f.Family]; ok {
			continue
		}
		seen[f.Family] = struct{}{}
		out = append(out, f.Family)
	}
	sort.Strings(out)
	return out
}
