package utils

import (
	"fmt"
	"strings"

	"github.com/avct/uasurfer"
)

type UserAgentInfo struct {
	Device  string
	OS      string
	Browser string
	Bot     bool
}

// ParseUserAgent returns nil for an empty user agent.
func ParseUserAgent(uaString string) *UserAgentInfo {
	if strings.TrimSpace(uaString) == "" {
		return nil
	}
	ua := uasurfer.Parse(uaString)

	device := "Unknown"
	switch ua.DeviceType {
	case uasurfer.DeviceComputer:
		device = "Computer"
	case uasurfer.DeviceTablet:
		device = "Tablet"
	case uasurfer.DevicePhone:
		device = "Phone"
	case uasurfer.DeviceConsole:
		device = "Console"
	case uasurfer.DeviceWearable:
		device = "Wearable"
	case uasurfer.DeviceTV:
		device = "TV"
	}

	return &UserAgentInfo{
		Device:  device,
		OS:      fmt.Sprintf("%s %d.%d", ua.OS.Name.String(), ua.OS.Version.Major, ua.OS.Version.Minor),
		Browser: ua.Browser.Name.String(),
		Bot:     ua.IsBot(),
	}
}

// IsCrawler reports whether the user agent belongs to a recognized crawler.
func IsCrawler(uaString string) bool {
	if uaString == "" {
		return false
	}
	return uasurfer.Parse(uaString).IsBot()
}

// IsBrowser reports whether the user agent is a known interactive browser.
func IsBrowser(uaString string) bool {
	if uaString == "" {
		return false
	}
	ua := uasurfer.Parse(uaString)
	return !ua.IsBot() && ua.Browser.Name != uasurfer.BrowserUnknown
}

// ContainsAny returns the first needle found in the lower-cased haystack.
func ContainsAny(haystack string, needles []string) (string, bool) {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return n, true
		}
	}
	return "", false
}
