// Package device turns User-Agent headers into short display names for logs
// and audit trails.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknown = "Unknown Device"

// DisplayName renders a User-Agent as "<browser> on <os>", e.g.
// "Firefox on Linux x86_64".
func DisplayName(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknown
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if ua.Bot() && browser == "" {
		browser = "Bot"
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser) + " on " + strings.TrimSpace(os)
}

// IsMobile reports whether the User-Agent belongs to a mobile device.
func IsMobile(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return false
	}
	return useragent.New(userAgent).Mobile()
}
