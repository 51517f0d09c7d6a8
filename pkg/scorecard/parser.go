package scorecard

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Labels searched for in table cells, in match priority order.
const (
	LabelApplicationNumber = "Application No."
	LabelCandidateName     = "Candidate’s Name"
	LabelAllIndiaRank      = "NEET All India Rank"
	LabelMarks             = "Total Marks Obtained (out of 720)"
)

var labels = []string{LabelApplicationNumber, LabelCandidateName, LabelAllIndiaRank, LabelMarks}

func containsLabel(s string) bool {
	for _, label := range labels {
		if strings.Contains(s, label) {
			return true
		}
	}
	return false
}

// Parse extracts a Record from a result page.
// It never fails: an unreadable document yields EmptyRecord.
func Parse(r io.Reader) Record {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return EmptyRecord()
	}
	return parseDocument(doc)
}

// ParseString is Parse for an in-memory document.
func ParseString(s string) Record {
	return Parse(strings.NewReader(s))
}

func parseDocument(doc *goquery.Document) Record {
	rec := EmptyRecord()

	doc.Find("td").Each(func(_ int, cell *goquery.Selection) {
		text := strings.TrimSpace(cell.Text())

		var field *string
		switch {
		case strings.Contains(text, LabelApplicationNumber):
			field = &rec.ApplicationNumber
		case strings.Contains(text, LabelCandidateName):
			field = &rec.CandidateName
		case strings.Contains(text, LabelAllIndiaRank):
			field = &rec.AllIndiaRank
		case strings.Contains(text, LabelMarks):
			field = &rec.Marks
		default:
			return
		}

		if value, ok := siblingValue(cell.Nodes[0]); ok {
			*field = value
		}
	})

	return rec
}

// siblingValue returns the text following a label cell.
// Whitespace-only text nodes are formatting between cells and are skipped;
// the first other sibling supplies the value. An empty sibling, or one that
// is itself a label, counts as no value.
func siblingValue(n *html.Node) (string, bool) {
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		var v string
		switch sib.Type {
		case html.TextNode:
			if v = strings.TrimSpace(sib.Data); v == "" {
				continue
			}
		case html.ElementNode:
			v = strings.TrimSpace(goquery.NewDocumentFromNode(sib).Text())
		default:
			continue
		}
		return v, v != "" && !containsLabel(v)
	}
	return "", false
}
