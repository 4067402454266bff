package threat_scanner_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/logger"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/threat_scanner"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/security/response"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type env struct {
	plugin    *threat_scanner.Plugin
	blocklist blocklist.Manager
	clock     *fakeClock
}

func newEnv(t *testing.T, cfg config.ScannerConfig) *env {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, err := cache.NewMemoryStore(cache.MemoryStoreOpts{Clock: clock.Now})
	require.NoError(t, err)
	log := logrus.New()
	bl := blocklist.NewManager(store, log, blocklist.Opts{Clock: clock.Now})
	policy := response.NewPolicy(bl, store, nil, nil, log, logger.NewAlerter(log, 10), config.Default().Shield.Response)
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	plugin := threat_scanner.NewThreatScannerPlugin(store, policy, log, cfg, &threat_scanner.ThreatScannerOpts{
		TimeProvider: clock.Now,
	})
	return &env{plugin: plugin, blocklist: bl, clock: clock}
}

func request(method, path, rawQuery string, body string) *types.RequestContext {
	return &types.RequestContext{
		Context:  context.Background(),
		IP:       "203.0.113.50",
		Method:   method,
		Path:     path,
		RawPath:  path,
		RawQuery: rawQuery,
		Headers:  map[string][]string{"User-Agent": {browserUA}},
		Body:     []byte(body),
		Metadata: map[string]interface{}{},
	}
}

func families(findings []threat.Finding) []string {
	var out []string
	for _, f := range findings {
		out = append(out, f.Family)
	}
	return out
}

func TestScanner_QueryInjection(t *testing.T) {
	s := threat_scanner.NewScanner(0)

	findings := s.Scan(request(http.MethodGet, "/search", "q=1 UNION SELECT password FROM users", ""))
	require.NotEmpty(t, findings)
	assert.Contains(t, families(findings), "sql_injection")
	assert.Equal(t, threat.SourceQuery, findings[0].Source)

	encoded := s.Scan(request(http.MethodGet, "/search", "q=1%20union%20select%20password", ""))
	assert.Contains(t, families(encoded), "sql_injection")
}

func TestScanner_CleanRequest(t *testing.T) {
	s := threat_scanner.NewScanner(0)
	findings := s.Scan(request(http.MethodGet, "/blog/posts/12", "page=2&sort=recent", ""))
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}

func TestScanner_BodyOnlyForMutatingMethods(t *testing.T) {
	s := threat_scanner.NewScanner(0)
	payload := "<script>alert(1)</script>"

	assert.Empty(t, s.Scan(request(http.MethodGet, "/", "", payload)))
	assert.Contains(t, families(s.Scan(request(http.MethodPost, "/", "", payload))), "xss_patterns")
}

func TestScanner_JSONBody(t *testing.T) {
	s := threat_scanner.NewScanner(0)
	body := `{"name":"ana","message":{"parts":["hello","run xmrig --donate-level 1"]}}`

	findings := s.Scan(request(http.MethodPost, "/api/contact/", "", body))
	require.NotEmpty(t, findings)
	assert.Contains(t, families(findings), "crypto_miners")
	for _, f := range findings {
		assert.Equal(t, threat.SourceBody, f.Source)
	}
}

func TestScanner_BodyTruncated(t *testing.T) {
	s := threat_scanner.NewScanner(16)
	body := "aaaaaaaaaaaaaaaaaaaaaaaa <script>"
	assert.Empty(t, s.Scan(request(http.MethodPost, "/", "", body)))
}

func TestScanner_DedupesPerSource(t *testing.T) {
	s := threat_scanner.NewScanner(0)
	findings := s.Scan(request(http.MethodGet, "/", "a=../../x&b=../../y", ""))

	count := 0
	for _, f := range findings {
		if f.Pattern == `\.\./` {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPlugin_SQLInjectionBlocked(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{})
	req := request(http.MethodGet, "/search", "q=1 UNION SELECT password FROM users", "")

	resp, err := e.plugin.Execute(context.Background(), types.PreRequest, req, nil)
	assert.Nil(t, resp)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, http.StatusForbidden, pluginErr.StatusCode)

	report, ok := req.Metadata[common.MetadataReport].(*threat.Report)
	require.True(t, ok)
	assert.Equal(t, threat.SeverityHigh, report.Severity)
	assert.Equal(t, threat.ActionBlockAndMonitor, report.RecommendedAction)
	assert.True(t, e.blocklist.IsBanned(context.Background(), req.IP))
}

func TestPlugin_TrojanIsCritical(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{})
	req := request(http.MethodPost, "/contact/", "", "message=please open a reverse shell and copy the clipboard")

	_, err := e.plugin.Execute(context.Background(), types.PreRequest, req, nil)
	require.Error(t, err)

	report := req.Metadata[common.MetadataReport].(*threat.Report)
	assert.Equal(t, threat.SeverityCritical, report.Severity)
	assert.Equal(t, threat.ActionBlockImmediately, report.RecommendedAction)
	assert.ElementsMatch(t, []string{"rat_patterns", "stealer_keywords"}, report.Families())

	entry, err := e.blocklist.Get(context.Background(), req.IP)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, response.ReasonCritical, entry.Reason)
}

func TestPlugin_MediumOnlyMonitors(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{})
	req := request(http.MethodPost, "/notes", "", "take a screenshot of the chart")

	resp, err := e.plugin.Execute(context.Background(), types.PreRequest, req, nil)
	require.NoError(t, err)
	require.NotNil(t, resp)
	report := resp.Metadata[common.MetadataReport].(*threat.Report)
	assert.Equal(t, threat.ActionMonitorClosely, report.RecommendedAction)
	assert.False(t, e.blocklist.IsBanned(context.Background(), req.IP))
}

func TestPlugin_CleanRequestPasses(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{})
	req := request(http.MethodGet, "/", "page=1", "")

	resp, err := e.plugin.Execute(context.Background(), types.PreRequest, req, nil)
	assert.NoError(t, err)
	assert.Nil(t, resp)
	assert.NotContains(t, req.Metadata, common.MetadataReport)
}

func TestPlugin_ObserveNeverBans(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{})
	req := request(http.MethodGet, "/", "cmd=;cat /etc/passwd", "")

	e.plugin.Observe(context.Background(), req)

	assert.Contains(t, req.Metadata, common.MetadataReport)
	assert.False(t, e.blocklist.IsBanned(context.Background(), req.IP))
}

func TestAdvanced_UserAgents(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{})

	tool := request(http.MethodGet, "/", "", "")
	tool.Headers["User-Agent"] = []string{"sqlmap/1.7.2#stable (https://sqlmap.org)"}
	report := e.plugin.Analyze(context.Background(), tool)
	require.NotNil(t, report)
	assert.Contains(t, report.Families(), "malicious_user_agent")

	empty := request(http.MethodGet, "/", "", "")
	empty.Headers = map[string][]string{}
	report = e.plugin.Analyze(context.Background(), empty)
	require.NotNil(t, report)
	assert.Equal(t, []string{"suspicious_user_agent"}, report.Families())
	assert.Equal(t, threat.SeverityMedium, report.Severity)

	curl := request(http.MethodGet, "/", "", "")
	curl.Headers["User-Agent"] = []string{"curl/8.4.0"}
	assert.Nil(t, e.plugin.Analyze(context.Background(), curl))
}

func TestAdvanced_EncodingAndBase64(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{})

	double := request(http.MethodGet, "/files", "name=%2561dmin", "")
	report := e.plugin.Analyze(context.Background(), double)
	require.NotNil(t, report)
	assert.Contains(t, report.Families(), "encoding_obfuscation")

	unicode := request(http.MethodGet, "/files", "name=%u0061dmin", "")
	report = e.plugin.Analyze(context.Background(), unicode)
	require.NotNil(t, report)
	assert.Contains(t, report.Families(), "encoding_obfuscation")

	dotdot := request(http.MethodGet, "/files", "q=%252e%252e", "")
	report = e.plugin.Analyze(context.Background(), dotdot)
	require.NotNil(t, report)
	assert.Equal(t, []string{"encoding_obfuscation"}, report.Families())

	doublePath := request(http.MethodGet, "/static/%252e%252e/secret", "", "")
	report = e.plugin.Analyze(context.Background(), doublePath)
	require.NotNil(t, report)
	assert.Contains(t, report.Families(), "encoding_obfuscation")

	long := make([]byte, 120)
	for i := range long {
		long[i] = 'A' + byte(i%26)
	}
	stego := request(http.MethodGet, "/img", "data="+string(long), "")
	report = e.plugin.Analyze(context.Background(), stego)
	require.NotNil(t, report)
	assert.Contains(t, report.Families(), "steganography")
}

func TestAdvanced_SingleEncodedPercentPasses(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{})

	for _, q := range []string{"q=100%25+cotton", "discount=50%25", "q=%E2%82%AC10"} {
		req := request(http.MethodGet, "/products", q, "")
		assert.Nil(t, e.plugin.Analyze(context.Background(), req), q)

		_, err := e.plugin.Execute(context.Background(), types.PreRequest, req, nil)
		assert.NoError(t, err, q)
	}
	assert.False(t, e.blocklist.IsBanned(context.Background(), "203.0.113.50"))
}

func TestAdvanced_SkipAdvancedChecks(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{SkipAdvancedChecks: true})
	req := request(http.MethodGet, "/", "", "")
	req.Headers["User-Agent"] = []string{"nikto"}
	assert.Nil(t, e.plugin.Analyze(context.Background(), req))
}

func TestAdvanced_TimingRegularity(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{TimingAnalysis: true})
	req := request(http.MethodGet, "/", "", "")

	for i := 0; i < 10; i++ {
		assert.Nil(t, e.plugin.Analyze(context.Background(), req), "request %d", i)
		e.clock.Advance(time.Second)
	}
	report := e.plugin.Analyze(context.Background(), req)
	require.NotNil(t, report)
	assert.Equal(t, []string{"automated_timing"}, report.Families())
}

func TestAdvanced_IrregularTimingPasses(t *testing.T) {
	e := newEnv(t, config.ScannerConfig{TimingAnalysis: true})
	req := request(http.MethodGet, "/", "", "")

	gaps := []time.Duration{
		time.Second, 2 * time.Second, 3 * time.Second, 700 * time.Millisecond, 4 * time.Second,
		time.Second, 2 * time.Second, 3 * time.Second, 700 * time.Millisecond, 4 * time.Second,
		time.Second,
	}
	for _, gap := range gaps {
		assert.Nil(t, e.plugin.Analyze(context.Background(), req))
		e.clock.Advance(gap)
	}
}
