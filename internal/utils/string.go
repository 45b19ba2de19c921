package utils

// Truncate caps s at max runes. Used to keep log lines and outgoing
// notifications inside transport size limits.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
