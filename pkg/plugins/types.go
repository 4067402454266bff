package plugins

import (
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/google/uuid"
)

const (
	IPBlocklist       = "ip_blocklist"
	ThreatScanner     = "threat_scanner"
	IPReputation      = "ip_reputation"
	AnomalyDetector   = "anomaly_detector"
	GlobalAttack      = "global_attack"
	RateLimiter       = "rate_limiter"
	SuspiciousRequest = "suspicious_request"
	SecurityHeaders   = "security_headers"
	AdminGuard        = "admin_guard"
)

// pipelineOrder is the fixed order plugins run in, whatever the profile.
var pipelineOrder = []string{
	IPBlocklist,
	ThreatScanner,
	IPReputation,
	AnomalyDetector,
	GlobalAttack,
	RateLimiter,
	SuspiciousRequest,
	SecurityHeaders,
}

var PluginList = []PluginDefinition{
	{
		UUID:          GeneratePluginUUID(IPBlocklist),
		Name:          IPBlocklist,
		Description:   "Rejects requests from addresses with an active ban",
		AllowedStages: []types.Stage{types.PreRequest},
		Category:      "network_security",
		Label:         "IP Blocklist",
	},
	{
		UUID:          GeneratePluginUUID(ThreatScanner),
		Name:          ThreatScanner,
		Description:   "Matches path, query, headers and body against malware and trojan signatures and applies the response policy",
		AllowedStages: []types.Stage{types.PreRequest},
		Category:      "application_security",
		Label:         "Threat Scanner",
	},
	{
		UUID:          GeneratePluginUUID(IPReputation),
		Name:          IPReputation,
		Description:   "Scores client addresses from their recent request history and bans malicious ones",
		AllowedStages: []types.Stage{types.PreRequest, types.PostResponse},
		Category:      "network_security",
		Label:         "IP Reputation",
	},
	{
		UUID:          GeneratePluginUUID(AnomalyDetector),
		Name:          AnomalyDetector,
		Description:   "Detects request bursts and repeated request patterns per address",
		AllowedStages: []types.Stage{types.PreRequest},
		Category:      "ddos_protection",
		Label:         "Burst and Pattern Detection",
	},
	{
		UUID:          GeneratePluginUUID(GlobalAttack),
		Name:          GlobalAttack,
		Description:   "Tracks the total request rate and switches to emergency mode under a distributed attack",
		AllowedStages: []types.Stage{types.PreRequest},
		Category:      "ddos_protection",
		Label:         "Global Attack Detection",
	},
	{
		UUID:          GeneratePluginUUID(RateLimiter),
		Name:          RateLimiter,
		Description:   "Per-address fixed window limits with a progressive penalty and a contact form sub-limit",
		AllowedStages: []types.Stage{types.PreRequest},
		Category:      "traffic_control",
		Label:         "Rate Limiter",
	},
	{
		UUID:          GeneratePluginUUID(SuspiciousRequest),
		Name:          SuspiciousRequest,
		Description:   "Scores suspicious request traits and bans addresses that accumulate too many",
		AllowedStages: []types.Stage{types.PreRequest},
		Category:      "application_security",
		Label:         "Suspicious Request Scoring",
	},
	{
		UUID:          GeneratePluginUUID(SecurityHeaders),
		Name:          SecurityHeaders,
		Description:   "Adds hardening headers to responses that passed the pipeline",
		AllowedStages: []types.Stage{types.PostResponse},
		Category:      "application_security",
		Label:         "Security Headers",
	},
	{
		UUID:          GeneratePluginUUID(AdminGuard),
		Name:          AdminGuard,
		Description:   "Protects the administrative area against login brute force and request floods",
		AllowedStages: []types.Stage{types.PreRequest},
		Category:      "access_control",
		Label:         "Admin Guard",
	},
}

func GeneratePluginUUID(pluginID string) string {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	id := uuid.NewSHA1(namespace, []byte(pluginID))
	return id.String()
}

type PluginDefinition struct {
	UUID          string        `json:"id"`
	Name          string        `json:"name"`
	Label         string        `json:"label"`
	Description   string        `json:"description"`
	AllowedStages []types.Stage `json:"allowed_stages"`
	Category      string        `json:"category"`
}
