// Package parser turns raw page text into GPU record fields.
package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-gpus/models"
)

const nonBreakingSpace = "\u00a0"

// ValidateRecord ensures the record carries its provenance.
func ValidateRecord(r *models.GpuRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.StoreName) == "" {
		return fmt.Errorf("record missing store name")
	}
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("record missing url for %s", r.StoreName)
	}
	if r.FetchTimestamp <= 0 {
		return fmt.Errorf("record missing fetch timestamp for %s", r.URL)
	}
	return nil
}

// FixText replaces non-breaking spaces with plain spaces.
func FixText(text string) string {
	return strings.ReplaceAll(text, nonBreakingSpace, " ")
}

// ASCIITokens keeps only the whitespace separated tokens made of ASCII characters.
func ASCIITokens(text string) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, field := range fields {
		if isASCII(field) {
			kept = append(kept, field)
		}
	}
	return strings.Join(kept, " ")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// ParseName drops vendor suffixes starting at " (" or " [" and non-ASCII tokens.
func ParseName(raw string) string {
	name := FixText(raw)
	if i := strings.Index(name, " ("); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, " ["); i >= 0 {
		name = name[:i]
	}
	return ASCIITokens(name)
}

// ParseModel scans key/value feature rows for key and returns its ASCII tokens.
// Rows without the separator are skipped. ok is false when no row matches.
func ParseModel(rows []string, key, separator string) (string, bool) {
	key = strings.TrimSpace(key)
	for _, row := range rows {
		k, v, found := strings.Cut(FixText(row), separator)
		if !found {
			continue
		}
		if strings.TrimSpace(k) == key {
			return ASCIITokens(v), true
		}
	}
	return "", false
}

// ParsePrice removes whitespace and trailing currency characters, keeping a digit-only
// string of any length. ok is false when anything but ASCII digits remains, signs included.
func ParsePrice(raw string) (string, bool) {
	price := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, FixText(raw))
	price = strings.TrimRightFunc(price, func(r rune) bool {
		return !isDigit(r)
	})
	if price == "" || strings.IndexFunc(price, func(r rune) bool { return !isDigit(r) }) >= 0 {
		return "", false
	}
	return price, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// ParseStock reports availability. A missing element counts as out of stock.
func ParseStock(raw string, found bool, outOfStock string) bool {
	if !found {
		return false
	}
	return strings.TrimSpace(FixText(raw)) != outOfStock
}
