package fingerprint_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/NeuralTrust/TrustShield/pkg/infra/fingerprint"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headerGetter(h map[string]string) func(string, ...string) string {
	return func(key string, _ ...string) string {
		return h[key]
	}
}

func TestResolveIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		peer    string
		want    string
	}{
		{
			name: "cdn header wins",
			headers: map[string]string{
				"CF-Connecting-IP": "203.0.113.7",
				"X-Forwarded-For":  "198.51.100.1",
			},
			peer: "10.0.0.1",
			want: "203.0.113.7",
		},
		{
			name:    "first value of forwarding chain",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2, 10.0.0.3"},
			peer:    "10.0.0.1",
			want:    "198.51.100.1",
		},
		{
			name: "invalid header skipped",
			headers: map[string]string{
				"CF-Connecting-IP": "not-an-ip",
				"X-Real-IP":        "198.51.100.9",
			},
			peer: "10.0.0.1",
			want: "198.51.100.9",
		},
		{
			name:    "ipv6 literal",
			headers: map[string]string{"X-Forwarded-For": "2001:db8::1"},
			peer:    "10.0.0.1",
			want:    "2001:db8::1",
		},
		{
			name:    "rfc 7239 forwarded",
			headers: map[string]string{"Forwarded": `for="[2001:db8::2]:4711";proto=https`},
			peer:    "10.0.0.1",
			want:    "2001:db8::2",
		},
		{
			name:    "address with port",
			headers: map[string]string{"X-Real-IP": "198.51.100.3:8080"},
			peer:    "10.0.0.1",
			want:    "198.51.100.3",
		},
		{
			name:    "falls back to peer",
			headers: map[string]string{"X-Forwarded-For": "garbage, 1.2.3.4"},
			peer:    "10.0.0.1",
			want:    "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fingerprint.ResolveIP(headerGetter(tt.headers), tt.peer)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientIP_Fiber(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(fingerprint.ClientIP(c))
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.20")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "198.51.100.20", string(body))
}

func TestSignature(t *testing.T) {
	a := fingerprint.Signature("GET", "/", "Mozilla/5.0")
	b := fingerprint.New("1.2.3.4", "GET", "/", "Mozilla/5.0").Signature()
	c := fingerprint.Signature("POST", "/", "Mozilla/5.0")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
