package http

import (
	"bytes"
	"context"
	"encoding/xml"
	"mime"
	stdhttp "net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
	"github.com/mangorocketofficial/tech-blog/internal/seo"
)

const (
	xmlContentType  = "application/xml; charset=utf-8"
	textContentType = "text/plain; charset=utf-8"
	feedCache       = "public, max-age=3600"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string      `xml:"title"`
	Link          string      `xml:"link"`
	Description   string      `xml:"description"`
	Language      string      `xml:"language"`
	LastBuildDate string      `xml:"lastBuildDate"`
	AtomLink      rssAtomLink `xml:"atom:link"`
	Image         rssImage    `xml:"image"`
	Items         []rssItem   `xml:"item"`
}

type rssAtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssImage struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	GUID        rssGUID       `xml:"guid"`
	Description string        `xml:"description"`
	PubDate     string        `xml:"pubDate"`
	Category    string        `xml:"category,omitempty"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink string `xml:"isPermaLink,attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

func (s *Server) registerFeedRoutes() {
	huma.Get(s.api, "/feed.xml", s.feedHandler, contentOperation("RSS feed", xmlContentType, stdhttp.StatusInternalServerError))
	huma.Get(s.api, "/sitemap.xml", s.sitemapHandler, contentOperation("Sitemap", xmlContentType, stdhttp.StatusInternalServerError))
	huma.Get(s.api, "/robots.txt", s.robotsHandler, contentOperation("Robots rules", textContentType))
}

func newXMLResponse(body []byte) *htmlResponse {
	return &htmlResponse{
		Status:       stdhttp.StatusOK,
		ContentType:  xmlContentType,
		CacheControl: feedCache,
		Body:         body,
	}
}

func (s *Server) feedHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	posts, err := s.blog.FeedPosts(ctx)
	if err != nil {
		s.recordError(ctx, err, "loading feed posts", nil)
		return nil, huma.Error500InternalServerError("Failed to build feed")
	}

	settings := s.loadSettings(ctx)
	body, err := buildRSS(s.seoSite(settings), posts, time.Now())
	if err != nil {
		s.recordError(ctx, err, "encoding feed", nil)
		return nil, huma.Error500InternalServerError("Failed to build feed")
	}

	return newXMLResponse(body), nil
}

func (s *Server) sitemapHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	entries, err := s.blog.SitemapEntries(ctx)
	if err != nil {
		s.recordError(ctx, err, "loading sitemap entries", nil)
		return nil, huma.Error500InternalServerError("Failed to build sitemap")
	}

	settings := s.loadSettings(ctx)
	body, err := buildSitemap(s.seoSite(settings), entries, settings.Categories, time.Now())
	if err != nil {
		s.recordError(ctx, err, "encoding sitemap", nil)
		return nil, huma.Error500InternalServerError("Failed to build sitemap")
	}

	return newXMLResponse(body), nil
}

func (s *Server) robotsHandler(_ context.Context, _ *struct{}) (*htmlResponse, error) {
	base := strings.TrimRight(s.siteURL, "/")
	body := strings.Join([]string{
		"User-agent: *",
		"Allow: /",
		"Disallow: /admin",
		"Disallow: /api/",
		"",
		"Sitemap: " + base + "/sitemap.xml",
		"",
	}, "\n")

	return &htmlResponse{
		Status:       stdhttp.StatusOK,
		ContentType:  textContentType,
		CacheControl: feedCache,
		Body:         []byte(body),
	}, nil
}

func buildRSS(site seo.Site, posts []blog.Post, now time.Time) ([]byte, error) {
	base := site.BaseURL()
	items := make([]rssItem, 0, len(posts))
	for i := range posts {
		post := &posts[i]
		link := site.PostURL(post.Slug)

		pubDate := post.CreatedAt
		if post.PublishedAt != nil {
			pubDate = *post.PublishedAt
		}

		item := rssItem{
			Title:       post.Title,
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: "true"},
			Description: post.DescriptionText(),
			PubDate:     pubDate.UTC().Format(time.RFC1123Z),
			Category:    post.Category,
		}
		if image := deref(post.FeaturedImage); image != "" {
			item.Enclosure = &rssEnclosure{URL: absoluteURL(base, image), Type: imageType(image), Length: "0"}
		}
		items = append(items, item)
	}

	feed := rssFeed{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         site.Name,
			Link:          base,
			Description:   site.Description,
			Language:      "ko-KR",
			LastBuildDate: now.UTC().Format(time.RFC1123Z),
			AtomLink:      rssAtomLink{Href: base + "/feed.xml", Rel: "self", Type: "application/rss+xml"},
			Image:         rssImage{URL: base + "/logo.png", Title: site.Name, Link: base},
			Items:         items,
		},
	}

	return encodeXML(feed)
}

func buildSitemap(site seo.Site, entries []blog.SitemapEntry, categories []string, now time.Time) ([]byte, error) {
	base := site.BaseURL()
	urls := make([]sitemapURL, 0, len(entries)+len(categories)+1)
	urls = append(urls, sitemapURL{
		Loc:        base + "/",
		LastMod:    now.UTC().Format(time.RFC3339),
		ChangeFreq: "daily",
		Priority:   "1.0",
	})

	for _, entry := range entries {
		urls = append(urls, sitemapURL{
			Loc:        site.PostURL(entry.Slug),
			LastMod:    entry.UpdatedAt.UTC().Format(time.RFC3339),
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}

	for _, category := range categories {
		urls = append(urls, sitemapURL{
			Loc:        site.CategoryURL(category),
			ChangeFreq: "weekly",
			Priority:   "0.6",
		})
	}

	return encodeXML(urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9", URLs: urls})
}

func encodeXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	encoder := xml.NewEncoder(&buf)
	encoder.Indent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return nil, eris.Wrap(err, "encoding xml")
	}
	return buf.Bytes(), nil
}

func absoluteURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return base + "/" + strings.TrimLeft(ref, "/")
}

func imageType(ref string) string {
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(ref))); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/jpeg"
}
