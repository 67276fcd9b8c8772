// Package listing crawls the paginated standards listing and rebuilds
// logical records from its full and continuation rows.
package listing

import (
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/sells-group/standards-cli/internal/model"
)

// ResultsTableSelector locates the listing table.
const ResultsTableSelector = "table#stds-results-table"

// headerMarker identifies the header row by a cell mentioning the date column.
const headerMarker = "Date"

// RowKind classifies a listing row by its cell count.
type RowKind int

const (
	// RowOther rows are discarded.
	RowOther RowKind = iota
	// RowFull rows carry every field and reset the carry context.
	RowFull
	// RowContinuation rows carry only SDO, designation and title.
	RowContinuation
)

// MinFullCells is the smallest cell count of a full row.
const MinFullCells = 7

// ContinuationCells is the exact cell count of a continuation row.
const ContinuationCells = 3

// ClassifyRow returns the kind of a row with n data cells.
func ClassifyRow(n int) RowKind {
	switch {
	case n >= MinFullCells:
		return RowFull
	case n == ContinuationCells:
		return RowContinuation
	default:
		return RowOther
	}
}

// Row is one raw table row.
type Row struct {
	Cells []*goquery.Selection
	Texts []string
	Kind  RowKind
}

// ParseState carries parsing context from one page to the next: the header
// template and the leading fields of the most recent full row.
type ParseState struct {
	Header []string
	carry  [4]string
}

// ParsePage parses one listing page. A page without the results table
// yields no records.
func ParsePage(r io.Reader, base *url.URL, st *ParseState) ([]model.StandardRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "listing: parse html")
	}
	return ParseDocument(doc, base, st), nil
}

// ParseDocument extracts records from a parsed listing page, updating st.
func ParseDocument(doc *goquery.Document, base *url.URL, st *ParseState) []model.StandardRecord {
	table := doc.Find(ResultsTableSelector).First()
	if table.Length() == 0 {
		return nil
	}

	var records []model.StandardRecord
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		row, ok := readRow(tr)
		if !ok {
			return
		}
		if st.isHeader(row.Texts) {
			return
		}
		switch row.Kind {
		case RowFull:
			copy(st.carry[:], row.Texts[:4])
			title, link := titleAndLink(row.Cells[6], row.Texts[6], base)
			records = append(records, model.StandardRecord{
				DateOfEntry:         row.Texts[0],
				SpecialtyArea:       row.Texts[1],
				RecognitionNumber:   row.Texts[2],
				ExtentOfRecognition: row.Texts[3],
				SDO:                 row.Texts[4],
				Designation:         row.Texts[5],
				Title:               title,
				TitleLink:           link,
			})
		case RowContinuation:
			title, link := titleAndLink(row.Cells[2], row.Texts[2], base)
			records = append(records, model.StandardRecord{
				DateOfEntry:         st.carry[0],
				SpecialtyArea:       st.carry[1],
				RecognitionNumber:   st.carry[2],
				ExtentOfRecognition: st.carry[3],
				SDO:                 row.Texts[0],
				Designation:         row.Texts[1],
				Title:               title,
				TitleLink:           link,
			})
		}
	})
	return records
}

// isHeader reports whether texts is the header row, capturing the template
// the first time a date-column marker is seen.
func (st *ParseState) isHeader(texts []string) bool {
	if st.Header == nil {
		for _, t := range texts {
			if strings.Contains(t, headerMarker) {
				st.Header = slices.Clone(texts)
				return true
			}
		}
		return false
	}
	return slices.Equal(texts, st.Header)
}

// readRow collects the data cells of tr. Rows without td cells are skipped.
func readRow(tr *goquery.Selection) (Row, bool) {
	tds := tr.Find("td")
	if tds.Length() == 0 {
		return Row{}, false
	}
	row := Row{
		Cells: make([]*goquery.Selection, 0, tds.Length()),
		Texts: make([]string, 0, tds.Length()),
		Kind:  ClassifyRow(tds.Length()),
	}
	tds.Each(func(_ int, td *goquery.Selection) {
		row.Cells = append(row.Cells, td)
		row.Texts = append(row.Texts, StrippedText(td))
	})
	return row, true
}

// titleAndLink returns the anchor text and resolved href of cell, or the
// cell text and an empty link when the cell has no anchor.
func titleAndLink(cell *goquery.Selection, text string, base *url.URL) (string, string) {
	a := cell.Find("a").First()
	if a.Length() == 0 {
		return text, ""
	}
	href, _ := a.Attr("href")
	return StrippedText(a), resolve(base, href)
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// StrippedText concatenates the whitespace-trimmed text nodes under s with
// no separator.
func StrippedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return b.String()
}
