package observability

import (
	"strings"
	"unicode"
)

const (
	maxRouteRunes  = 180
	maxMethodRunes = 10
	maxUserIDRunes = 64
)

// SanitizeRoute prepares a request route for use as a log field or metric
// attribute. An empty route collapses to "/".
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clampPrintable(route, maxRouteRunes)
}

// SanitizeMethod prepares an HTTP method for logging.
func SanitizeMethod(method string) string {
	return clampPrintable(method, maxMethodRunes)
}

// SanitizeUserID caps user identifiers before they reach logs.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return clampPrintable(uid, maxUserIDRunes)
}

// clampPrintable drops control runes (keeping tab and line breaks) and cuts
// the result at limit runes.
func clampPrintable(value string, limit int) string {
	var b strings.Builder
	b.Grow(len(value))
	kept := 0
	for _, r := range value {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		if kept == limit {
			break
		}
		b.WriteRune(r)
		kept++
	}
	return b.String()
}
