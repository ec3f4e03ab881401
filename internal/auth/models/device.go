package models

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceLabel turns a User-Agent header into a short "Browser on OS" label
// for session logs and audit reasons.
func DeviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "unknown device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if ua.Bot() {
		return "bot " + browser
	}
	label := browser
	if osName := ua.OSInfo().Name; osName != "" {
		label += " on " + osName
	}
	if ua.Mobile() {
		label += " (mobile)"
	}
	return label
}

// Device is the label of the client the record was issued to.
func (r *RefreshTokenRecord) Device() string {
	return DeviceLabel(r.UserAgent)
}
