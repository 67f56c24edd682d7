package leads

import "strings"

// NormalizePhone reduces a dialable number to a comparable form: digits only,
// with a US country code stripped down to the national ten digits. Carriers
// and spreadsheet imports disagree on formatting; matching happens on the
// normalized form, storage keeps the original.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return digits[1:]
	}
	return digits
}

// SamePhone reports whether two raw numbers refer to the same line.
func SamePhone(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	return na != "" && na == nb
}
