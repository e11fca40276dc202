package cvcweb

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
}

// staticPages are the hand-built pages of the marketing site.
var staticPages = []struct {
	path       string
	changeFreq string
}{
	{"", "weekly"},
	{"about", "monthly"},
	{"services", "monthly"},
	{"portfolio", "weekly"},
	{"blog", "daily"},
	{"contact", "monthly"},
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	projects, err := a.Cache.PublishedProjects(ctx)
	if err != nil {
		return err
	}
	posts, err := a.Cache.PublishedPosts(ctx)
	if err != nil {
		return err
	}

	base := a.Config.URL
	urls := make([]sitemapURL, 0, len(staticPages)+len(projects)+len(posts))
	for _, p := range staticPages {
		loc := BuildURL(base)
		if p.path != "" {
			loc = BuildURL(base, p.path)
		}
		urls = append(urls, sitemapURL{Loc: loc, ChangeFreq: p.changeFreq})
	}
	for _, p := range projects {
		u := sitemapURL{Loc: BuildURL(base, "portfolio", p.Slug), ChangeFreq: "monthly"}
		if !p.UpdatedAt.IsZero() {
			u.LastMod = p.UpdatedAt.Format("2006-01-02")
		}
		urls = append(urls, u)
	}
	for _, p := range posts {
		u := sitemapURL{Loc: BuildURL(base, "blog", p.Slug), ChangeFreq: "monthly"}
		if !p.PublishedAt.IsZero() {
			u.LastMod = p.PublishedAt.Format("2006-01-02")
		}
		urls = append(urls, u)
	}

	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
