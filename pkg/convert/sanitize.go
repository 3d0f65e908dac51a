package convert

import "strings"

// SanitizeFilename makes a series key safe to use as a directory or file
// name. Path separators, characters reserved on common filesystems and
// control characters become underscores; surrounding whitespace is dropped.
// A key that sanitizes to nothing falls back to "unnamed".
func SanitizeFilename(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r < 0x20 || r == 0x7F:
			b.WriteByte('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if name == "" {
		return "unnamed"
	}
	return name
}
