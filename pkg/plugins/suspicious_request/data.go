package suspicious_request

var suspiciousPatterns = []string{
	// web application probes
	"wp-admin", "wp-login", "wp-content", "wp-includes",
	"phpmyadmin", "admin.php", "administrator", "cpanel",
	"plesk", "webmin", "cgi-bin", ".env", "config.php",

	// sql
	"eval(", "base64_decode", "union select", "or 1=1",
	"drop table", "insert into", "delete from",
	"exec(", "execute(", "sp_executesql", "xp_cmdshell",

	// traversal
	"../", "..\\", "/etc/passwd", "/proc/self/environ",
	"windows/system32", "boot.ini", "etc/shadow",

	// script injection
	"script>", "<iframe", "javascript:", "vbscript:",
	"onload=", "onerror=", "onclick=", "alert(",

	// file inclusion
	"php://input", "php://filter", "data://", "file://",
	"expect://", "zip://", "phar://",

	// shell
	";cat ", ";ls ", ";wget ", ";curl ", "|nc ",
	"&&", "||", "`", "$(",
}

var toolAgents = []string{
	"nikto", "sqlmap", "nmap", "masscan", "zap", "burp",
	"acunetix", "nessus", "openvas", "w3af", "dirb", "dirbuster",
	"gobuster", "wfuzz", "ffuf", "hydra", "medusa", "ncrack",
	"python-urllib",
}

var apiClients = []string{
	"python-requests", "curl/", "wget/", "postman", "insomnia",
}

var browserEndpoints = map[string]struct{}{
	"/favicon.ico": {},
	"/robots.txt":  {},
	"/sitemap.xml": {},
}

// paths that weigh three points
var highRiskPathHints = []string{"admin", "wp-", "php"}

type Flag struct {
	Reason string `json:"reason"`
	Match  string `json:"match,omitempty"`
}
