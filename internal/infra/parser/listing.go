// Package parser turns the upstream photobook site's HTML into domain values.
//
// The selectors below are the site's markup contract. When the site changes its
// templates, extraction degrades to empty results rather than errors.
package parser

import (
	"fmt"
	"io"

	"github.com/PhotobookScraper/internal/domain"
	"github.com/PuerkitoBio/goquery"
)

const (
	articleSelector  = "article.dynamic-content-template"
	headlineSelector = "h2.gb-headline a"
	thumbSelector    = "figure img"
	navSelector      = "div.nav-links"
	currentSelector  = "span.page-numbers.current"
	pageLinkSelector = "a.page-numbers"
)

// ParseListing extracts the article blocks and pagination of a category or search page.
// Items and page links keep document order; duplicates are preserved.
func ParseListing(r io.Reader) ([]domain.ListItem, *domain.Pagination, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse listing HTML: %w", err)
	}

	items := make([]domain.ListItem, 0)
	doc.Find(articleSelector).Each(func(_ int, article *goquery.Selection) {
		a := article.Find(headlineSelector).First()
		if a.Length() == 0 {
			return
		}

		items = append(items, domain.ListItem{
			Title: strippedText(a),
			URL:   a.AttrOr("href", ""),
			Thumb: article.Find(thumbSelector).First().AttrOr("src", ""),
		})
	})

	return items, parsePagination(doc.Selection), nil
}

func parsePagination(root *goquery.Selection) *domain.Pagination {
	pagination := domain.NewPagination()

	nav := root.Find(navSelector).First()
	if nav.Length() == 0 {
		return pagination
	}

	if current := nav.Find(currentSelector).First(); current.Length() > 0 {
		if n, ok := pageNumber(current.Text()); ok {
			pagination.Current = n
		}
	}

	nav.Find(pageLinkSelector).Each(func(_ int, a *goquery.Selection) {
		if a.HasClass("prev") || a.HasClass("next") {
			return
		}
		n, ok := pageNumber(a.Text())
		if !ok {
			return
		}
		pagination.Pages = append(pagination.Pages, domain.PageLink{
			Num: n,
			URL: a.AttrOr("href", ""),
		})
	})

	if len(pagination.Pages) > 0 {
		last := pagination.Pages[len(pagination.Pages)-1].Num
		pagination.Last = &last
	}

	return pagination
}
