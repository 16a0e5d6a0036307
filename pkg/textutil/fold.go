// Package textutil holds accent-insensitive text helpers for Vietnamese names.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	reHyphen   = regexp.MustCompile(`-+`)
)

// Fold lowercases s and strips diacritics so "Nguyễn Đức" and "nguyen duc"
// compare equal. đ has no decomposition and is mapped by hand.
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r == 'đ' {
			r = 'd'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsFold reports whether needle occurs in haystack ignoring case and
// accents. An empty needle matches everything.
func ContainsFold(haystack, needle string) bool {
	needle = Fold(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), needle)
}

// Slug turns free text into [a-z0-9-], capped at maxLen runes (100 when <= 0).
func Slug(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 100
	}
	s = reNonAlnum.ReplaceAllString(Fold(s), "-")
	s = strings.Trim(reHyphen.ReplaceAllString(s, "-"), "-")
	if utf8.RuneCountInString(s) > maxLen {
		s = strings.Trim(string([]rune(s)[:maxLen]), "-")
	}
	if s == "" {
		s = "item"
	}
	return s
}
