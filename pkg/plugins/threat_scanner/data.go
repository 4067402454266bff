package threat_scanner

import (
	"regexp"

	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
)

// Signature is one case-insensitive pattern of a family.
type Signature struct {
	Family   string
	Kind     threat.Kind
	Severity threat.Severity
	Pattern  string
	re       *regexp.Regexp
}

func (s Signature) Match(content string) bool {
	return s.re.MatchString(content)
}

type family struct {
	name     string
	kind     threat.Kind
	severity threat.Severity
	patterns []string
	// per-pattern overrides of the family severity
	overrides map[string]threat.Severity
}

var families = []family{
	{
		name:     "webshells",
		kind:     threat.KindMalware,
		severity: threat.SeverityHigh,
		patterns: []string{
			`eval\s*\(\s*base64_decode\s*\(`,
			`system\s*\(\s*\$_\w+\[`,
			`exec\s*\(\s*\$_\w+\[`,
			`shell_exec\s*\(\s*\$_\w+\[`,
			`passthru\s*\(\s*\$_\w+\[`,
			`file_get_contents\s*\(\s*["']php://input`,
			`move_uploaded_file\s*\(\s*\$_FILES`,
			`<\?php.*?system\s*\(`,
			`c99shell`,
			`r57shell`,
			`wso\s*shell`,
			`\bFilesMan\b`,
			`Uname:.*?php_uname`,
		},
	},
	{
		name:     "sql_injection",
		kind:     threat.KindMalware,
		severity: threat.SeverityHigh,
		patterns: []string{
			`union\s+(?:all\s+)?select`,
			`\bor\s+1\s*=\s*1\b`,
			`\band\s+1\s*=\s*1\b`,
			`['"]\s*or\s+['"]?\w+['"]?\s*=\s*['"]?\w+`,
			`;\s*(?:drop|alter|truncate|create)\s+(?:table|database|schema)`,
			`\bdrop\s+table\b`,
			`\bdelete\s+from\b`,
			`\binsert\s+into\b`,
			`\bupdate\s+\w+\s+set\b`,
			`\bexec\s*\(\s*["']`,
			`sp_executesql`,
			`xp_cmdshell`,
			`information_schema`,
			`load_file\s*\(`,
			`into\s+(?:out|dump)file`,
			`benchmark\s*\(`,
			`\bsleep\s*\(\s*\d`,
			`waitfor\s+delay`,
		},
		overrides: map[string]threat.Severity{
			`\bdelete\s+from\b`:      threat.SeverityMedium,
			`\binsert\s+into\b`:      threat.SeverityMedium,
			`\bupdate\s+\w+\s+set\b`: threat.SeverityMedium,
		},
	},
	{
		name:     "xss_patterns",
		kind:     threat.KindMalware,
		severity: threat.SeverityHigh,
		patterns: []string{
			`<script[^>]*>`,
			`javascript\s*:`,
			`vbscript\s*:`,
			`\bon(?:load|error|click|mouseover|focus)\s*=`,
			`\balert\s*\(`,
			`\bconfirm\s*\(`,
			`\bprompt\s*\(`,
			`document\.cookie`,
			`document\.location`,
			`window\.location`,
			`\beval\s*\(`,
			`expression\s*\(`,
			`<iframe[^>]*>`,
			`<object[^>]*>`,
			`<embed[^>]*>`,
		},
	},
	{
		name:     "directory_traversal",
		kind:     threat.KindMalware,
		severity: threat.SeverityHigh,
		patterns: []string{
			`\.\./`,
			`\.\.\\`,
			`/etc/passwd`,
			`/proc/self/environ`,
			`windows/system32`,
			`boot\.ini`,
			`etc/shadow`,
			`%2e%2e%2f`,
			`%2e%2e%5c`,
			`\.\.%252f`,
			`\.\.%255c`,
		},
	},
	{
		name:     "command_injection",
		kind:     threat.KindMalware,
		severity: threat.SeverityHigh,
		patterns: []string{
			`;\s*cat\s+`,
			`;\s*ls\s+`,
			`;\s*wget\s+`,
			`;\s*curl\s+`,
			`\|\s*nc\s+`,
			`(?:&&|\|\|)\s*(?:cat|ls|id|whoami|uname|wget|curl|nc|bash|sh)\b`,
			"`[^`]+`",
			`\$\([^)]+\)`,
			`>\s*/dev/null`,
			`2>&1`,
			`/bin/(?:ba)?sh\b`,
			`cmd\.exe`,
			`\bpowershell\b`,
		},
	},
	{
		name:     "rat_patterns",
		kind:     threat.KindTrojan,
		severity: threat.SeverityCritical,
		patterns: []string{
			`teamviewer.*?password`,
			`\bvnc\b.*?password`,
			`\brdp\b.*?connection`,
			`reverse\s+shell`,
			`bind\s+shell`,
			`netcat.*?-l.*?-p`,
			`socat.*?tcp-listen`,
			`\bssh\b.*?-R\s+\d+`,
			`ngrok.*?tcp`,
			`localtunnel`,
		},
	},
	{
		name:     "exfiltration",
		kind:     threat.KindTrojan,
		severity: threat.SeverityCritical,
		patterns: []string{
			`curl.*?-d.*?@`,
			`wget.*?--post-data`,
			`base64.*?\|\s*curl`,
			`\btar\b.*?\|\s*curl`,
			`\bzip\b.*?\|\s*curl`,
			`mysqldump.*?\|\s*curl`,
			`pg_dump.*?\|\s*curl`,
			`\bscp\b.*?-r\b`,
			`\brsync\b.*?-av`,
		},
	},
	{
		name:     "crypto_miners",
		kind:     threat.KindTrojan,
		severity: threat.SeverityCritical,
		patterns: []string{
			`\bxmrig\b`,
			`\bcpuminer\b`,
			`\bminerd\b`,
			`\bcgminer\b`,
			`\bbfgminer\b`,
			`stratum\+tcp://`,
			`mining\.pool`,
			`\bcryptonight\b`,
			`\bethash\b`,
			`\bequihash\b`,
		},
	},
	{
		name:     "info_stealers",
		kind:     threat.KindTrojan,
		severity: threat.SeverityCritical,
		patterns: []string{
			`\bkeylogger\b`,
			`GetAsyncKeyState`,
			`SetWindowsHookEx`,
			`GetForegroundWindow`,
			`GetWindowText`,
			`browser.*?password`,
			`cookie.*?steal`,
			`credential.*?dump`,
		},
	},
	{
		name:     "stealer_keywords",
		kind:     threat.KindTrojan,
		severity: threat.SeverityMedium,
		patterns: []string{
			`\bclipboard\b`,
			`\bscreenshot\b`,
		},
	},
}

// DefaultSignatures compiles the built-in families. It panics on an invalid
// pattern, which only a broken build can produce.
func DefaultSignatures() []Signature {
	var out []Signature
	for _, f := range families {
		for _, p := range f.patterns {
			sev := f.severity
			if override, ok := f.overrides[p]; ok {
				sev = override
			}
			out = append(out, Signature{
				Family:   f.name,
				Kind:     f.kind,
				Severity: sev,
				Pattern:  p,
				re:       regexp.MustCompile(`(?is)` + p),
			})
		}
	}
	return out
}
