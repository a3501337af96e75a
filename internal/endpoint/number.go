package endpoint

import "strings"

// NumberLength is the canonical address length after normalization.
const NumberLength = 11

// ParseNumber normalizes a dialed address: formatting characters are
// stripped, digits and a leading service star are kept. Alias resolution
// (e.g. *611) happens after normalization, against the configured alias map.
func ParseNumber(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '*' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveAlias maps a dial code to its full address if an alias exists.
func ResolveAlias(number string, aliases map[string]string) string {
	if target, ok := aliases[number]; ok {
		return target
	}
	return number
}

// ValidNumber reports whether a normalized address has the canonical length.
func ValidNumber(number string) bool {
	if len(number) != NumberLength {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
