package services

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

var (
	reLetters = regexp.MustCompile(`[A-Za-z]`)
	// Only allow digits, spaces, +, -, ., (, )
	reAllowed = regexp.MustCompile(`^[0-9+\-.\s\(\)]+$`)
)

// NormPhone normalizes North American numbers to +1XXXXXXXXXX.
// Rules: strip spaces/dashes/dots/parens; 10 digits -> +1..; 11 digits
// starting with 1 -> +..; anything else (letters, other lengths, other
// country codes) -> "".
func NormPhone(p string) string {
	s := strings.TrimSpace(p)
	if s == "" || reLetters.MatchString(s) || !reAllowed.MatchString(s) {
		return ""
	}
	if strings.Count(s, "+") > 1 || (strings.Contains(s, "+") && !strings.HasPrefix(s, "+")) {
		return ""
	}

	d := digitsOnly(s)
	switch {
	case len(d) == 10:
		d = "1" + d
	case len(d) == 11 && d[0] == '1':
	default:
		return ""
	}
	// NANP area codes and exchanges never start with 0 or 1.
	if d[1] < '2' || d[4] < '2' {
		return ""
	}
	return "+" + d
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// maxEmailLen is the RFC 5321 path limit.
const maxEmailLen = 254

// NormEmail lowercases and validates a bare address; empty input is
// accepted as "no email". Display-name forms ("Jane <jane@example.com>")
// are rejected.
func NormEmail(s string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(s))
	if e == "" {
		return "", true
	}
	if len(e) > maxEmailLen {
		return e, false
	}
	addr, err := mail.ParseAddress(e)
	return e, err == nil && addr.Address == e
}
