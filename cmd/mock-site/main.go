package main

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const (
	books         = 24
	perPage       = 6
	pagesPerBook  = 3
	imagesPerPage = 4
)

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html><body>
{{range .Items}}<article class="dynamic-content-template">
  <figure><img src="{{.Thumb}}"></figure>
  <h2 class="gb-headline"><a href="{{.URL}}">{{.Title}}</a></h2>
</article>
{{end}}{{if .Pages}}<div class="nav-links">
{{if gt .Current 1}}<a class="prev page-numbers" href="{{.Prev}}">Prev</a>{{end}}
{{range .Pages}}{{if .Current}}<span class="page-numbers current">{{.Num}}</span>{{else}}<a class="page-numbers" href="{{.URL}}">{{.Num}}</a>{{end}}
{{end}}{{if .Next}}<a class="next page-numbers" href="{{.Next}}">Next</a>{{end}}
</div>{{end}}
</body></html>`))

var galleryTemplate = template.Must(template.New("gallery").Parse(`<!DOCTYPE html>
<html><body>
<div class="dynamic-entry-content">
{{range .Images}}  <img src="{{.URL}}" title="{{.Title}}">
{{end}}</div>
{{if .Next}}<div class="nav-right"><a href="{{.Next}}">Next</a></div>{{end}}
</body></html>`))

type item struct {
	Title, URL, Thumb string
}

type pageLink struct {
	Num     int
	URL     string
	Current bool
}

type listing struct {
	Items      []item
	Pages      []pageLink
	Current    int
	Prev, Next string
}

type image struct {
	Title, URL string
}

func main() {
	addr := ":8081"
	if port := os.Getenv("MOCK_SITE_PORT"); port != "" {
		addr = ":" + port
	}
	origin := "http://localhost" + addr

	mux := http.NewServeMux()
	mux.HandleFunc("/category/photobook/", func(w http.ResponseWriter, r *http.Request) {
		page := pageFromPath(r.URL.Path)
		render(w, listingTemplate, buildListing(origin, page, "", func(n int) string {
			return fmt.Sprintf("%s/category/photobook/page/%d/", origin, n)
		}))
	})
	mux.HandleFunc("/page/", func(w http.ResponseWriter, r *http.Request) {
		page := pageFromPath(r.URL.Path)
		q := r.URL.Query().Get("s")
		render(w, listingTemplate, buildListing(origin, page, q, func(n int) string {
			return fmt.Sprintf("%s/page/%d/?s=%s", origin, n, url.QueryEscape(q))
		}))
	})
	mux.HandleFunc("/book/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		id, err := strconv.Atoi(parts[1])
		if err != nil || id < 1 || id > books {
			http.NotFound(w, r)
			return
		}
		page := 1
		if len(parts) > 2 {
			if page, err = strconv.Atoi(parts[2]); err != nil || page < 1 || page > pagesPerBook {
				http.NotFound(w, r)
				return
			}
		}

		data := struct {
			Images []image
			Next   string
		}{}
		for i := 1; i <= imagesPerPage; i++ {
			data.Images = append(data.Images, image{
				Title: fmt.Sprintf("Book %d image %d", id, (page-1)*imagesPerPage+i),
				URL:   fmt.Sprintf("%s/images/%d/%d-%d.jpg", origin, id, page, i),
			})
		}
		if page < pagesPerBook {
			data.Next = fmt.Sprintf("/book/%d/%d/", id, page+1)
		}
		render(w, galleryTemplate, data)
	})
	mux.HandleFunc("/random-photobook", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/book/7/", http.StatusFound)
	})

	slog.Info("Mock photobook site running", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// pageFromPath reads n from a trailing /page/<n>/ segment, defaulting to 1.
func pageFromPath(path string) int {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == "page" {
			if n, err := strconv.Atoi(parts[i+1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}

func buildListing(origin string, current int, query string, pageURL func(int) string) listing {
	last := (books + perPage - 1) / perPage
	data := listing{Current: current}
	if current > last {
		return data
	}

	for i := (current-1)*perPage + 1; i <= current*perPage && i <= books; i++ {
		title := fmt.Sprintf("Photobook %d", i)
		if query != "" {
			title = fmt.Sprintf("%s (%s)", title, query)
		}
		data.Items = append(data.Items, item{
			Title: title,
			URL:   fmt.Sprintf("%s/book/%d/", origin, i),
			Thumb: fmt.Sprintf("%s/images/%d/thumb.jpg", origin, i),
		})
	}
	for n := 1; n <= last; n++ {
		data.Pages = append(data.Pages, pageLink{Num: n, URL: pageURL(n), Current: n == current})
	}
	if current > 1 {
		data.Prev = pageURL(current - 1)
	}
	if current < last {
		data.Next = pageURL(current + 1)
	}
	return data
}

func render(w http.ResponseWriter, t *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, data); err != nil {
		slog.Error("Failed to render page", "error", err)
	}
}
