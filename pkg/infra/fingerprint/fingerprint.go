package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint identifies a repeated request shape from one client.
type Fingerprint struct {
	IP        string
	Method    string
	Path      string
	UserAgent string
}

func New(ip, method, path, userAgent string) Fingerprint {
	return Fingerprint{IP: ip, Method: method, Path: path, UserAgent: userAgent}
}

// Signature is stable for identical (method, path, user-agent) triples.
func (f Fingerprint) Signature() string {
	return Signature(f.Method, f.Path, f.UserAgent)
}

func Signature(method, path, userAgent string) string {
	sum := sha256.Sum256([]byte(method + ":" + path + ":" + userAgent))
	return hex.EncodeToString(sum[:])[:16]
}
