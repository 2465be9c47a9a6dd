package http

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
	"github.com/mangorocketofficial/tech-blog/internal/http/templates"
	"github.com/mangorocketofficial/tech-blog/internal/seo"
)

var (
	koreanTime    = time.FixedZone("KST", 9*60*60)
	koreanPrinter = message.NewPrinter(language.Korean)
)

// loadSettings returns the site settings, falling back to the defaults when
// they cannot be read so pages still render.
func (s *Server) loadSettings(ctx context.Context) *blog.Settings {
	settings, err := s.blog.Settings(ctx)
	if err != nil {
		s.recordError(ctx, err, "loading settings", nil)
		defaults := blog.DefaultSettings()
		return &defaults
	}
	return settings
}

func (s *Server) site(ctx context.Context, settings *blog.Settings) templates.Site {
	return templates.Site{
		Name:        settings.SiteName,
		Description: settings.SiteDescription,
		URL:         strings.TrimRight(s.siteURL, "/"),
		Categories:  settings.Categories,
		IsAdmin:     IsAdmin(ctx),
	}
}

func (s *Server) siteFromDefaults() templates.Site {
	defaults := blog.DefaultSettings()
	return s.site(context.Background(), &defaults)
}

func (s *Server) seoSite(settings *blog.Settings) seo.Site {
	return seo.Site{Name: settings.SiteName, Description: settings.SiteDescription, URL: s.siteURL}
}

func postPath(slug string) string {
	return "/posts/" + url.PathEscape(slug)
}

func categoryPath(category string) string {
	return "/category/" + url.PathEscape(category)
}

func searchPath(query string) string {
	return "/search?q=" + url.QueryEscape(query)
}

func pagePath(page int) string {
	if page <= 1 {
		return "/"
	}
	return "/?page=" + strconv.Itoa(page)
}

func postView(post *blog.Post, withContent bool) templates.PostView {
	view := templates.PostView{
		ID:          post.ID,
		Title:       post.Title,
		Slug:        post.Slug,
		URL:         postPath(post.Slug),
		Description: post.DescriptionText(),
		Category:    post.Category,
		CategoryURL: categoryPath(post.Category),
		Image:       deref(post.FeaturedImage),
		Date:        formatDate(post),
		Price:       formatPrice(post.ProductPrice),
		ProductName: deref(post.ProductName),
		CoupangURL:  deref(post.CoupangURL),
		Tags:        post.Tags,
		Views:       post.ViewCount,
	}
	if post.WordCount != nil {
		view.WordCount = *post.WordCount
	}

	if withContent {
		// Post bodies are authored by the administrator or the generator.
		view.Content = post.Content
		for _, item := range post.FAQ {
			view.FAQ = append(view.FAQ, templates.FAQView{Question: item.Question, Answer: item.Answer})
		}
	}
	return view
}

func postViews(posts []blog.Post) []templates.PostView {
	views := make([]templates.PostView, 0, len(posts))
	for i := range posts {
		views = append(views, postView(&posts[i], false))
	}
	return views
}

func countViews(counts []blog.Count, link func(string) string) []templates.CountView {
	views := make([]templates.CountView, 0, len(counts))
	for _, count := range counts {
		views = append(views, templates.CountView{Name: count.Name, URL: link(count.Name), Count: count.Count})
	}
	return views
}

func paginationView(listing *blog.PublishedPage) templates.Pagination {
	var view templates.Pagination
	for _, marker := range listing.Markers {
		if marker.IsEllipsis() {
			view.Links = append(view.Links, templates.PageLink{Label: "…", Ellipsis: true})
			continue
		}
		view.Links = append(view.Links, templates.PageLink{
			Label:   strconv.Itoa(marker.Page()),
			URL:     pagePath(marker.Page()),
			Current: marker.Page() == listing.Page,
		})
	}

	if listing.Page > 1 {
		view.PrevURL = pagePath(listing.Page - 1)
	}
	if listing.Page < listing.TotalPages {
		view.NextURL = pagePath(listing.Page + 1)
	}
	return view
}

// formatDate renders the publication date, or the creation date of drafts, in Korean.
func formatDate(post *blog.Post) string {
	at := post.CreatedAt
	if post.PublishedAt != nil {
		at = *post.PublishedAt
	}
	if at.IsZero() {
		return ""
	}
	return at.In(koreanTime).Format("2006년 1월 2일")
}

func formatPrice(price *float64) string {
	if price == nil {
		return ""
	}
	return koreanPrinter.Sprintf("%d원", int64(*price))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
