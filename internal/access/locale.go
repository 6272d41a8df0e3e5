package access

import "strings"

const DefaultLocale = "en"

// LocaleFromPath returns the two-letter first segment of path, or fallback
// when the path carries no locale.
func LocaleFromPath(path, fallback string) string {
	if fallback == "" {
		fallback = DefaultLocale
	}
	trimmed := strings.TrimPrefix(path, "/")
	segment, _, _ := strings.Cut(trimmed, "/")
	if isLocale(segment) {
		return strings.ToLower(segment)
	}
	return fallback
}

// Localize prefixes a resource with a locale segment.
func Localize(locale string, resource Resource) string {
	return LocalizePath(locale, resource.Path())
}

// LocalizePath prefixes an absolute path with a locale segment unless it
// already carries one.
func LocalizePath(locale, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	segment, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if isLocale(segment) {
		return path
	}
	if path == "/" {
		return "/" + locale
	}
	return "/" + locale + path
}

func isLocale(segment string) bool {
	if len(segment) != 2 {
		return false
	}
	for _, c := range strings.ToLower(segment) {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
