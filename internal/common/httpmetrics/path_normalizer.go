package httpmetrics

import (
	"regexp"
	"strings"
)

var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// collections whose second segment is always a record id.
var collections = map[string]bool{
	"goals":     true,
	"nutrition": true,
	"sessions":  true,
}

// NormalizePath collapses record ids so metric labels stay bounded.
func NormalizePath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}

	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		switch {
		case uuidPattern.MatchString(part), isNumeric(part):
			parts[i] = "{id}"
		case i == 1 && collections[parts[0]]:
			parts[i] = "{id}"
		}
	}

	return "/" + strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
