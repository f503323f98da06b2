package tabular

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func looksLikeHTMLTable(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(lower, "<") && strings.Contains(lower, "<table")
}

// ParseHTMLTable reads the first <table> in an HTML fragment. Header cells
// come from <th> elements, or from the first row when there are none.
func ParseHTMLTable(text string) (*Extract, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, fmt.Errorf("%w: no table element", ErrMalformed)
	}

	var records [][]string
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var rec []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			rec = append(rec, strings.TrimSpace(cell.Text()))
		})
		if len(rec) > 0 {
			records = append(records, rec)
		}
	})

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: table has no rows", ErrMalformed)
	}

	header := records[0]
	rows := records[1:]
	for i, r := range rows {
		if len(r) > len(header) {
			return nil, fmt.Errorf("%w: table row %d has %d cells, header has %d", ErrMalformed, i+2, len(r), len(header))
		}
	}
	return FromRecords(header, rows)
}
