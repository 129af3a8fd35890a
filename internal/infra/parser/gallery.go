package parser

import (
	"fmt"
	"io"

	"github.com/PhotobookScraper/internal/domain"
	"github.com/PuerkitoBio/goquery"
)

const (
	galleryImageSelector = "div.dynamic-entry-content img"
	nextPageSelector     = "div.nav-right a"
)

// ParseGallery extracts the images of one detail page and the href of its next-page
// control. next is empty when the page has no next control or the control has no href.
func ParseGallery(r io.Reader) (images []domain.GalleryImage, next string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse gallery HTML: %w", err)
	}

	images = make([]domain.GalleryImage, 0)
	doc.Find(galleryImageSelector).Each(func(_ int, img *goquery.Selection) {
		images = append(images, domain.GalleryImage{
			Title: img.AttrOr("title", ""),
			URL:   img.AttrOr("src", ""),
		})
	})

	next = doc.Find(nextPageSelector).First().AttrOr("href", "")
	return images, next, nil
}
