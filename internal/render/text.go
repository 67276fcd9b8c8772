// Package render writes a standard's detail as PDF and HTML files.
package render

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/standards-cli/internal/model"
)

// Sanitize decomposes s (NFKD) and replaces every rune outside Latin-1
// with '?'. Empty input renders as model.NotAvailable.
func Sanitize(s string) string {
	if s == "" {
		return model.NotAvailable
	}
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if _, ok := charmap.ISO8859_1.EncodeRune(r); ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

// latin1 encodes s for the PDF core fonts, which take single-byte text.
func latin1(s string) string {
	s = Sanitize(s)
	out := make([]byte, 0, len(s))
	for _, r := range s {
		c, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			c = '?'
		}
		out = append(out, c)
	}
	return string(out)
}
