package threat_scanner

import (
	"context"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/NeuralTrust/TrustShield/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	timingKeyPrefix = "timing:"
	timingSamples   = 11
	timingTTL       = time.Hour
	timingMinGap    = 500 * time.Millisecond

	minUserAgentLen = 10
)

var (
	base64Run      = regexp.MustCompile(`[A-Za-z0-9+/]{101,}={0,2}`)
	unicodeEscape  = regexp.MustCompile(`(?i)%u[0-9a-f]{4}`)
	residualEscape = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)

	attackTools = []string{
		"sqlmap", "nikto", "nmap", "masscan", "dirb", "gobuster",
		"wfuzz", "burpsuite", "havij", "acunetix", "w3af", "hydra",
	}
)

// AdvancedChecks look at request shape rather than content signatures.
type AdvancedChecks struct {
	store        cache.Store
	logger       *logrus.Logger
	timing       bool
	timeProvider func() time.Time
}

func NewAdvancedChecks(store cache.Store, logger *logrus.Logger, timing bool, clock func() time.Time) *AdvancedChecks {
	if clock == nil {
		clock = time.Now
	}
	return &AdvancedChecks{
		store:        store,
		logger:       logger,
		timing:       timing,
		timeProvider: clock,
	}
}

func (a *AdvancedChecks) Check(ctx context.Context, req *types.RequestContext) []threat.Finding {
	var out []threat.Finding
	if f := a.checkTiming(ctx, req); f != nil {
		out = append(out, *f)
	}
	if f := checkSteganography(req); f != nil {
		out = append(out, *f)
	}
	if f := checkUserAgent(req.UserAgent()); f != nil {
		out = append(out, *f)
	}
	if f := checkEncoding(req); f != nil {
		out = append(out, *f)
	}
	return out
}

func advanced(family string, sev threat.Severity, source threat.Source, desc string) *threat.Finding {
	return &threat.Finding{
		Kind:        threat.KindAdvanced,
		Family:      family,
		Severity:    sev,
		Description: desc,
		Source:      source,
	}
}

// checkTiming flags clients whose last ten request intervals take at most two
// distinct values at 100ms resolution.
func (a *AdvancedChecks) checkTiming(ctx context.Context, req *types.RequestContext) *threat.Finding {
	if !a.timing || a.store == nil || req.IP == "" {
		return nil
	}
	key := timingKeyPrefix + req.IP
	now := a.timeProvider().UnixMilli()
	if err := a.store.PushBounded(ctx, key, strconv.FormatInt(now, 10), timingSamples, timingTTL); err != nil {
		a.logger.WithError(err).Debug("failed to record request timing")
		return nil
	}
	raw, err := a.store.Range(ctx, key)
	if err != nil || len(raw) < timingSamples {
		return nil
	}

	// newest first
	distinct := make(map[int64]struct{})
	for i := 0; i < timingSamples-1; i++ {
		newer, err1 := strconv.ParseInt(raw[i], 10, 64)
		older, err2 := strconv.ParseInt(raw[i+1], 10, 64)
		if err1 != nil || err2 != nil {
			return nil
		}
		gap := time.Duration(newer-older) * time.Millisecond
		if gap < timingMinGap {
			return nil
		}
		distinct[int64(math.Round(gap.Seconds()*10))] = struct{}{}
	}
	if len(distinct) > 2 {
		return nil
	}
	return advanced("automated_timing", threat.SeverityHigh, threat.SourceTiming,
		"Regular timing pattern suggests automated requests")
}

func checkSteganography(req *types.RequestContext) *threat.Finding {
	if base64Run.MatchString(req.RawQuery) {
		return advanced("steganography", threat.SeverityMedium, threat.SourceQuery,
			"Long base64 payload in query")
	}
	if req.IsMutating() && base64Run.Match(req.Body) {
		return advanced("steganography", threat.SeverityMedium, threat.SourceBody,
			"Long base64 payload in body")
	}
	return nil
}

func checkUserAgent(ua string) *threat.Finding {
	if tool, ok := utils.ContainsAny(ua, attackTools); ok {
		return advanced("malicious_user_agent", threat.SeverityHigh, threat.SourceUserAgent,
			"Attack tool detected: "+tool)
	}
	if len(strings.TrimSpace(ua)) < minUserAgentLen && !utils.IsCrawler(ua) {
		return advanced("suspicious_user_agent", threat.SeverityMedium, threat.SourceUserAgent,
			"Missing or suspicious user agent")
	}
	return nil
}

// checkEncoding looks at path and query after one round of decoding; only
// input that was encoded more than once still carries an escape.
func checkEncoding(req *types.RequestContext) *threat.Finding {
	for _, part := range []struct {
		content string
		source  threat.Source
	}{
		{decodeOnce(req.RawPath, url.PathUnescape), threat.SourcePath},
		{decodeOnce(req.RawQuery, url.QueryUnescape), threat.SourceQuery},
	} {
		if residualEscape.MatchString(part.content) {
			return advanced("encoding_obfuscation", threat.SeverityHigh, part.source,
				"Multiple URL encoding detected")
		}
		if unicodeEscape.MatchString(part.content) {
			return advanced("encoding_obfuscation", threat.SeverityHigh, part.source,
				"Unicode encoding obfuscation detected")
		}
	}
	return nil
}

// decodeOnce falls back to decoding escape by escape when the input holds an
// invalid sequence such as %u; invalid escapes are kept as they are.
func decodeOnce(raw string, unescape func(string) (string, error)) string {
	if !strings.Contains(raw, "%") {
		return raw
	}
	if decoded, err := unescape(raw); err == nil {
		return decoded
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '%' && i+2 < len(raw) {
			if v, err := strconv.ParseUint(raw[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}
