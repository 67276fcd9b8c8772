// Package enrich fetches a standard's detail page and extracts the values
// rendered into its artifacts.
package enrich

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/sells-group/standards-cli/internal/model"
)

// DateLabels are tried in order; the first label found on the page wins.
var DateLabels = []string{"Date of Entry", "Publication Date", "Posted Date", "Effective Date"}

var looseDate = regexp.MustCompile(`\b(\d{1,2}[-/]\d{1,2}[-/]\d{4})\b`)

// Extracted holds the raw values found on a detail page. Empty means the
// value was not on the page.
type Extracted struct {
	FRRecognitionNumber string
	DateOfEntry         string
	Standard            string
	ScopeAbstract       string
	ExtentOfRecognition string
	SDO                 model.SDOInfo
}

// Extract reads the labeled values from a detail page.
func Extract(doc *goquery.Document) Extracted {
	var x Extracted
	root := doc.Selection.Nodes[0]

	x.DateOfEntry = extractDate(root)

	if n := findText(root, func(s string) bool { return strings.TrimSpace(s) == "FR Recognition Number" }); n != nil {
		if td := ancestor(n, "td"); td != nil {
			if sib := nextSiblingElement(td, "td"); sib != nil {
				x.FRRecognitionNumber = strings.TrimSpace(goquery.NewDocumentFromNode(sib).Text())
			}
		}
	}

	if td := findLabeled(doc, "td", "Standard"); td != nil {
		if tbl := nextElement(td, "table"); tbl != nil {
			x.Standard = joinedText(tbl, " ")
		}
	}
	if span := findLabeled(doc, "span", "Scope/Abstract"); span != nil {
		if tbl := nextElement(span, "table"); tbl != nil {
			x.ScopeAbstract = joinedText(tbl, " ")
		}
	}
	if span := findLabeled(doc, "span", "Extent of Recognition"); span != nil {
		if tbl := nextElement(span, "table"); tbl != nil {
			x.ExtentOfRecognition = joinedText(tbl, " ")
		}
	}

	if span := findLabeled(doc, "span", "Standards Development Organization"); span != nil {
		if tbl := nextElement(span, "table"); tbl != nil {
			tr := goquery.NewDocumentFromNode(tbl).Find("tr").First()
			tds := tr.Find("td")
			if tds.Length() >= 3 {
				x.SDO.Acronym = strings.TrimSpace(tds.Eq(0).Text())
				x.SDO.Name = strings.TrimSpace(tds.Eq(1).Text())
				if href, ok := tds.Eq(2).Find("a").First().Attr("href"); ok {
					x.SDO.Website = href
				}
			}
		}
	}
	return x
}

// extractDate tries each label: the sibling cell of the label's cell, then
// a date-shaped token in the label's parent text.
func extractDate(root *html.Node) string {
	for _, label := range DateLabels {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label))
		n := findText(root, re.MatchString)
		if n == nil {
			continue
		}
		if td := ancestor(n, "td"); td != nil {
			if sib := nextSiblingElement(td, "td"); sib != nil {
				if v := strings.TrimSpace(goquery.NewDocumentFromNode(sib).Text()); v != "" {
					return v
				}
			}
		}
		if n.Parent != nil {
			if m := looseDate.FindStringSubmatch(joinedText(n.Parent, "")); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// findLabeled returns the first tag element whose trimmed text is label.
func findLabeled(doc *goquery.Document, tag, label string) *html.Node {
	sel := doc.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == label
	}).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel.Nodes[0]
}

// findText returns the first text node in document order accepted by match.
func findText(n *html.Node, match func(string) bool) *html.Node {
	if n.Type == html.TextNode && match(n.Data) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findText(c, match); found != nil {
			return found
		}
	}
	return nil
}

func ancestor(n *html.Node, tag string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return p
		}
	}
	return nil
}

func nextSiblingElement(n *html.Node, tag string) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.Data == tag {
			return s
		}
	}
	return nil
}

// nextElement returns the first tag element after n in document order,
// starting with n's own descendants.
func nextElement(n *html.Node, tag string) *html.Node {
	for cur := following(n); cur != nil; cur = following(cur) {
		if cur.Type == html.ElementNode && cur.Data == tag {
			return cur
		}
	}
	return nil
}

func following(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// joinedText joins the trimmed, non-empty text nodes under n with sep.
func joinedText(n *html.Node, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}
