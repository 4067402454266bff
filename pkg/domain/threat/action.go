package threat

type Action string

const (
	ActionLogOnly          Action = "LOG_ONLY"
	ActionMonitorClosely   Action = "MONITOR_CLOSELY"
	ActionBlockAndMonitor  Action = "BLOCK_AND_MONITOR"
	ActionBlockImmediately Action = "BLOCK_IMMEDIATELY"

	// Actions recorded on bans not produced by the scanner.
	ActionManualBlock      Action = "MANUAL_BLOCK"
	ActionRateLimitBlock   Action = "RATE_LIMIT_BLOCK"
	ActionDDoSBlock        Action = "DDOS_BLOCK"
	ActionReputationBlock  Action = "REPUTATION_BLOCK"
	ActionSuspiciousBlock  Action = "SUSPICIOUS_BLOCK"
	ActionEscalatedMonitor Action = "MONITOR_ESCALATION"
)

// ActionFor maps the aggregate severity of a report to its response.
func ActionFor(sev Severity) Action {
	switch {
	case sev >= SeverityCritical:
		return ActionBlockImmediately
	case sev == SeverityHigh:
		return ActionBlockAndMonitor
	case sev == SeverityMedium:
		return ActionMonitorClosely
	default:
		return ActionLogOnly
	}
}

// IsActiveThreat reports whether a ban carrying this action is surfaced by
// threat analysis.
func (a Action) IsActiveThreat() bool {
	return a == ActionBlockAndMonitor || a == ActionBlockImmediately
}
