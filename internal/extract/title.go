package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageTitle returns the text of the first <title> element, or "" when the
// page has none.
func PageTitle(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
