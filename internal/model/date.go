package model

import (
	"strings"
	"time"
)

// ISODate is the canonical date layout stored in the catalog and rendered
// in artifacts.
const ISODate = "2006-01-02"

var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	ISODate,
}

// NormalizeDate converts a US-style MM/DD/YYYY (or MM-DD-YYYY) date to
// YYYY-MM-DD. The second result is false when s matches no known layout, in
// which case s is returned trimmed but otherwise unchanged.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate), true
		}
	}
	return s, false
}
