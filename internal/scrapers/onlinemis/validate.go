package onlinemis

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// the portal renders this into a select when a query runs with an empty
	// session variable.
	expiredOracleError = "ociexecute(): ORA-00936: missing expression"
	// the page title shown when a request was bounced back to CAS.
	casServiceTitle = "EEPIS Central Authentication Service (CAS)"

	selectAppName = "#app-name"
)

func parseHtml(html []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(html))
}

func isDocumentValid(doc *goquery.Document) bool {
	expired := false
	doc.Find("option").EachWithBreak(func(_ int, option *goquery.Selection) bool {
		if option.AttrOr("value", "") == expiredOracleError {
			expired = true
			return false
		}
		return true
	})
	if expired {
		return false
	}
	return strings.TrimSpace(doc.Find(selectAppName).Text()) != casServiceTitle
}

// IsSessionValid reports whether a portal page was served to a live session.
// It is a content heuristic, the portal answers 200 either way.
func IsSessionValid(html []byte) bool {
	doc, err := parseHtml(html)
	if err != nil {
		return false
	}
	return isDocumentValid(doc)
}

// IsLogbookSessionValid is IsSessionValid with the additional logbook rule:
// the logbook page of a dead session contains no table at all.
func IsLogbookSessionValid(html []byte) bool {
	doc, err := parseHtml(html)
	if err != nil {
		return false
	}
	if doc.Find("table").Length() == 0 {
		return false
	}
	return isDocumentValid(doc)
}
