package parser

import (
	"strconv"
	"strings"
	"unicode"
)

// LastPageNumber scans pager texts from the end and returns the first purely numeric one.
func LastPageNumber(texts []string) (int, bool) {
	for i := len(texts) - 1; i >= 0; i-- {
		text := strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, FixText(texts[i]))
		if text == "" || strings.IndexFunc(text, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			continue
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// IsLastPage reports whether ordinal has reached the last page announced by the pager.
// Without a numeric pager entry the page is never considered last.
func IsLastPage(texts []string, ordinal int) bool {
	last, ok := LastPageNumber(texts)
	if !ok {
		return false
	}
	return last <= ordinal
}
