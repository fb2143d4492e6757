package htmlutil

import (
	"bytes"
	"net/url"
	"onlinemis-backend/lib/textutil"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText returns the text of a selection with non printable characters
// removed and whitespace collapsed.
func CleanText(sel *goquery.Selection) string {
	return textutil.CollapseWhitespace(removeNonPrintable(sel.Text()))
}

// Lines splits the contents of sel on `<br>` elements and returns the
// cleaned text of every line, including empty ones.
func Lines(sel *goquery.Selection) []string {
	var lines []string
	var current strings.Builder
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		node := child.Get(0)
		if node.Type == html.ElementNode && node.Data == "br" {
			lines = append(lines, textutil.CollapseWhitespace(removeNonPrintable(current.String())))
			current.Reset()
			return
		}
		current.WriteString(GetText(node))
	})
	return append(lines, textutil.CollapseWhitespace(removeNonPrintable(current.String())))
}

type Anchor struct {
	Name string
	Href string
}

// GetAnchor returns the first anchor in sel, the second return value is false
// if there is none or its href cannot be parsed.
func GetAnchor(sel *goquery.Selection) (Anchor, bool) {
	a := sel.Filter("a").AddSelection(sel.Find("a")).First()
	if a.Length() == 0 {
		return Anchor{}, false
	}
	href, ok := a.Attr("href")
	if !ok {
		return Anchor{}, false
	}
	link, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return Anchor{}, false
	}
	return Anchor{
		Name: CleanText(a),
		Href: link.String(),
	}, true
}
