package records

import (
	"strconv"
	"strings"
)

// cleaner strips the formatting noise both upstreams mix into numeric
// text: non-breaking spaces, the mis-encoded marker left by double-decoded
// UTF-8, percent signs, and decimal commas.
var cleaner = strings.NewReplacer(
	" ", "",
	"Â", "",
	"%", "",
	",", ".",
)

// Clean normalizes one leaf text value. Idempotent: cleaning an already
// clean value is a no-op.
func Clean(s string) string {
	return strings.TrimSpace(cleaner.Replace(s))
}

// parseNumber cleans s and parses it as a float. Plain spaces act as
// thousands separators upstream and are dropped before parsing. False
// means the leaf is not numeric.
func parseNumber(s string) (float64, bool) {
	c := strings.ReplaceAll(Clean(s), " ", "")
	if c == "" || c == "-" {
		return 0, false
	}
	f, err := strconv.ParseFloat(c, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// numberOrZero is the lenient form used for optional fields.
func numberOrZero(s string) float64 {
	f, _ := parseNumber(s)
	return f
}
