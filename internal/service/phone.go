package service

import (
	"regexp"
	"strings"
)

var mobilePattern = regexp.MustCompile(`^01[0-9]{8,9}$`)

// normalizePhone strips everything but digits; numbers are stored and sent
// without hyphens.
func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validMobile(phone string) bool {
	return mobilePattern.MatchString(phone)
}
