package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormPhone(t *testing.T) {
	cases := map[string]string{
		"(555) 234-5678":   "+15552345678",
		"555.234.5678":     "+15552345678",
		"1 555 234 5678":   "+15552345678",
		"+1-555-234-5678":  "+15552345678",
		"  5552345678  ":   "+15552345678",
		"":                 "",
		"call me":          "",
		"555-CALL-NOW":     "",
		"234-5678":         "",
		"+44 20 7946 0958": "",
		"055-234-5678":     "",
		"555-134-5678":     "",
		"555+2345678":      "",
		"#5552345678":      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormPhone(in), "input %q", in)
	}
}

func TestNormEmail(t *testing.T) {
	e, ok := NormEmail("  Parent@Example.COM ")
	assert.True(t, ok)
	assert.Equal(t, "parent@example.com", e)

	e, ok = NormEmail("")
	assert.True(t, ok)
	assert.Empty(t, e)

	_, ok = NormEmail("not-an-email")
	assert.False(t, ok)
}
