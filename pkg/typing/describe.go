package typing

import "fmt"

// Describe renders entries as an indicator line, or "" when nobody is typing
func Describe(entries []Entry) string {
	switch len(entries) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing...", entries[0].DisplayName)
	case 2:
		return fmt.Sprintf("%s and %s are typing...", entries[0].DisplayName, entries[1].DisplayName)
	default:
		return fmt.Sprintf("%d people are typing...", len(entries))
	}
}
