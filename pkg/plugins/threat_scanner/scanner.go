package threat_scanner

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/valyala/fastjson"
)

const maxJSONDepth = 32

// Scanner matches request content against signature families. It holds no
// per-request state and is safe for concurrent use.
type Scanner struct {
	signatures []Signature
	maxBody    int
	parsers    fastjson.ParserPool
}

func NewScanner(maxBody int) *Scanner {
	if maxBody <= 0 {
		maxBody = 64 << 10
	}
	return &Scanner{
		signatures: DefaultSignatures(),
		maxBody:    maxBody,
	}
}

// findings collects matches, keeping one per source, family and pattern.
type findings struct {
	seen map[string]struct{}
	list []threat.Finding
}

func (f *findings) add(sig Signature, source threat.Source) {
	key := string(source) + "|" + sig.Family + "|" + sig.Pattern
	if _, ok := f.seen[key]; ok {
		return
	}
	f.seen[key] = struct{}{}
	f.list = append(f.list, threat.Finding{
		Kind:        sig.Kind,
		Family:      sig.Family,
		Pattern:     sig.Pattern,
		Severity:    sig.Severity,
		Description: fmt.Sprintf("%s pattern detected: %s", kindLabel(sig.Kind), sig.Family),
		Source:      source,
	})
}

func kindLabel(kind threat.Kind) string {
	switch kind {
	case threat.KindTrojan:
		return "Trojan"
	case threat.KindMalware:
		return "Malware"
	default:
		return "Threat"
	}
}

// Scan never stops at the first match. No findings yields an empty slice.
func (s *Scanner) Scan(req *types.RequestContext) []threat.Finding {
	f := &findings{seen: make(map[string]struct{})}

	s.scanContent(f, req.Path, threat.SourcePath)
	s.scanEncoded(f, req.RawQuery, threat.SourceQuery)
	s.scanContent(f, req.UserAgent(), threat.SourceUserAgent)
	s.scanContent(f, req.Referer(), threat.SourceReferer)

	if req.IsMutating() && len(req.Body) > 0 {
		body := req.Body
		if len(body) > s.maxBody {
			body = body[:s.maxBody]
		}
		s.scanEncoded(f, string(body), threat.SourceBody)
		s.scanJSON(f, body)
	}

	if f.list == nil {
		return []threat.Finding{}
	}
	return f.list
}

func (s *Scanner) scanContent(f *findings, content string, source threat.Source) {
	if content == "" {
		return
	}
	for _, sig := range s.signatures {
		if sig.Match(content) {
			f.add(sig, source)
		}
	}
}

// scanEncoded scans the raw form and, when it differs, the URL-decoded form.
func (s *Scanner) scanEncoded(f *findings, content string, source threat.Source) {
	s.scanContent(f, content, source)
	if !strings.ContainsAny(content, "%+") {
		return
	}
	if decoded, err := url.QueryUnescape(content); err == nil && decoded != content {
		s.scanContent(f, decoded, source)
	}
}

func (s *Scanner) scanJSON(f *findings, body []byte) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return
	}
	p := s.parsers.Get()
	defer s.parsers.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return
	}
	s.walk(f, v, 0)
}

func (s *Scanner) walk(f *findings, v *fastjson.Value, depth int) {
	if v == nil || depth > maxJSONDepth {
		return
	}
	switch v.Type() {
	case fastjson.TypeString:
		s.scanContent(f, string(v.GetStringBytes()), threat.SourceBody)
	case fastjson.TypeArray:
		for _, item := range v.GetArray() {
			s.walk(f, item, depth+1)
		}
	case fastjson.TypeObject:
		obj := v.GetObject()
		obj.Visit(func(key []byte, item *fastjson.Value) {
			s.scanContent(f, string(key), threat.SourceBody)
			s.walk(f, item, depth+1)
		})
	}
}
