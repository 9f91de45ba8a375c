package report

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// FileName returns the report file name for a document generated at now:
// 2006-01-02_150405_<order>_nesting_0001.pdf.
func FileName(now time.Time, orderRef string, seq int64) string {
	return fmt.Sprintf("%s_%s_nesting_%04d.pdf", now.Format("2006-01-02_150405"), SanitizeOrder(orderRef), seq)
}

// SanitizeOrder makes an order reference safe to embed in a file name.
// Letters, digits, '-' and '.' are kept; everything else becomes '_'.
func SanitizeOrder(s string) string {
	s = strings.TrimSpace(s)
	out := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			return r
		}
		return '_'
	}, s)
	out = strings.Trim(out, "._")
	if out == "" {
		return "order"
	}
	return out
}
