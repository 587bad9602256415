package parser

import "strings"

// CategoryUnknown is the category for empty user agents.
const CategoryUnknown = "Unknown"

// CategorizeUserAgent buckets a user agent string into a coarse player
// platform category. Categories are intentionally broad; they feed the
// top-categories breakdown, not identity.
func CategorizeUserAgent(ua string) string {
	if ua == "" {
		return CategoryUnknown
	}

	u := strings.ToLower(ua)
	switch {
	case strings.Contains(u, "iphone"), strings.Contains(u, "ipad"),
		strings.Contains(u, "ios"), strings.Contains(u, "applecoremedia"):
		return "iOS"
	case strings.Contains(u, "android"), strings.Contains(u, "okhttp"),
		strings.Contains(u, "exoplayer"):
		return "Android"
	case strings.Contains(u, "windows"):
		return "Windows"
	case strings.Contains(u, "mac os"), strings.Contains(u, "macintosh"):
		return "macOS"
	case strings.Contains(u, "linux"):
		return "Linux"
	case strings.Contains(u, "curl"), strings.Contains(u, "wget"):
		return "CLI"
	case strings.Contains(u, "bot"), strings.Contains(u, "spider"):
		return "Bot"
	default:
		return "Other"
	}
}
