package parser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/width"
)

// strippedText returns the visible text of the selection with every text node trimmed
// and the non-empty pieces concatenated, so "<a> Foo <b> Bar </b></a>" yields "FooBar".
func strippedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.TrimSpace(n.Data))
		case html.CommentNode:
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

// digitsOf keeps only the digit characters of s. Full-width digits are folded to ASCII.
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteString(width.Fold.String(string(r)))
		}
	}
	return b.String()
}

// pageNumber parses the digits found in text. ok is false when there are none or they
// do not form a valid int.
func pageNumber(text string) (n int, ok bool) {
	digits := digitsOf(text)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
