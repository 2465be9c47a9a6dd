package http

import (
	"context"
	stdhttp "net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"github.com/mangorocketofficial/tech-blog/internal/http/templates"
	"github.com/mangorocketofficial/tech-blog/internal/seo"
)

type homeInput struct {
	Page string `query:"page"`
}

type postPageInput struct {
	Slug string `path:"slug"`
}

type categoryInput struct {
	Name string `path:"name"`
}

type searchInput struct {
	Query string `query:"q"`
}

func (s *Server) registerPageRoutes() {
	huma.Get(s.api, "/", s.homeHandler, htmlOperation("Blog home", stdhttp.StatusNotFound, stdhttp.StatusInternalServerError))
	huma.Get(s.api, "/posts/{slug}", s.postHandler, htmlOperation(
		"Read a post",
		stdhttp.StatusNotFound,
		stdhttp.StatusInternalServerError,
	))
	huma.Get(s.api, "/category/{name}", s.categoryHandler, htmlOperation(
		"List posts of a category",
		stdhttp.StatusInternalServerError,
	))
	huma.Get(s.api, "/categories", s.categoriesHandler, htmlOperation(
		"List categories and tags",
		stdhttp.StatusInternalServerError,
	))
	huma.Get(s.api, "/search", s.searchHandler, htmlOperation(
		"Search published posts",
		stdhttp.StatusInternalServerError,
	))
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (s *Server) homeHandler(ctx context.Context, input *homeInput) (*htmlResponse, error) {
	settings := s.loadSettings(ctx)
	site := s.seoSite(settings)

	listing, err := s.blog.PublishedPage(ctx, parsePage(input.Page))
	if err != nil {
		s.recordError(ctx, err, "loading home listing", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "글 목록을 불러오지 못했습니다.")
	}

	popular, err := s.blog.PopularPosts(ctx)
	if err != nil {
		s.recordError(ctx, err, "loading popular posts", nil)
	}

	counts, err := s.blog.CategoryCounts(ctx)
	if err != nil {
		s.recordError(ctx, err, "counting categories", nil)
	}

	canonical := site.BaseURL() + "/"
	if listing.Page > 1 {
		canonical = site.BaseURL() + pagePath(listing.Page)
	}

	data := templates.HomePageData{
		Site: s.site(ctx, settings),
		Meta: templates.Meta{
			Title:       settings.SiteName,
			Description: settings.SiteDescription,
			Canonical:   canonical,
			Type:        "website",
			JSONLD:      []string{seo.WebsiteJSONLD(site), seo.OrganizationJSONLD(site)},
		},
		Posts:      postViews(listing.Posts),
		Popular:    postViews(popular),
		Categories: countViews(counts, categoryPath),
		Pagination: paginationView(listing),
		Total:      listing.Total,
	}

	body, err := renderComponent(ctx, templates.HomePage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering home page", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) postHandler(ctx context.Context, input *postPageInput) (*htmlResponse, error) {
	slug := strings.TrimSpace(input.Slug)
	post, err := s.blog.ViewPost(ctx, slug)
	if err != nil {
		status, message := classifyError(err)
		if status >= stdhttp.StatusInternalServerError {
			s.recordError(ctx, err, "loading post", logrus.Fields{"slug": slug})
		}
		return s.renderErrorResponse(ctx, status, message)
	}

	related, err := s.blog.RelatedPosts(ctx, post)
	if err != nil {
		s.recordError(ctx, err, "loading related posts", logrus.Fields{"slug": slug})
	}

	settings := s.loadSettings(ctx)
	site := s.seoSite(settings)

	description := post.DescriptionText()
	if description == "" {
		description = settings.SiteDescription
	}

	data := templates.PostPageData{
		Site: s.site(ctx, settings),
		Meta: templates.Meta{
			Title:       post.Title + " | " + settings.SiteName,
			Description: description,
			Canonical:   site.PostURL(post.Slug),
			Image:       deref(post.FeaturedImage),
			Type:        "article",
			Keywords:    strings.Join(post.SEOKeywords, ", "),
			JSONLD:      seo.PostJSONLD(site, post),
		},
		Post:    postView(post, true),
		Related: postViews(related),
	}

	body, err := renderComponent(ctx, templates.PostPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering post page", logrus.Fields{"slug": slug})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) categoryHandler(ctx context.Context, input *categoryInput) (*htmlResponse, error) {
	category := strings.TrimSpace(input.Name)
	posts, err := s.blog.PostsByCategory(ctx, category)
	if err != nil {
		s.recordError(ctx, err, "loading category", logrus.Fields{"category": category})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	settings := s.loadSettings(ctx)
	site := s.seoSite(settings)

	data := templates.CategoryPageData{
		Site: s.site(ctx, settings),
		Meta: templates.Meta{
			Title:       category + " | " + settings.SiteName,
			Description: category + " 카테고리의 글 목록입니다.",
			Canonical:   site.CategoryURL(category),
			Type:        "website",
		},
		Category: category,
		Posts:    postViews(posts),
	}

	body, err := renderComponent(ctx, templates.CategoryPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering category page", logrus.Fields{"category": category})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) categoriesHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	categories, err := s.blog.CategoryCounts(ctx)
	if err != nil {
		s.recordError(ctx, err, "counting categories", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	tags, err := s.blog.TagCounts(ctx)
	if err != nil {
		s.recordError(ctx, err, "counting tags", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	settings := s.loadSettings(ctx)
	site := s.seoSite(settings)

	data := templates.CategoriesPageData{
		Site: s.site(ctx, settings),
		Meta: templates.Meta{
			Title:       "카테고리 | " + settings.SiteName,
			Description: settings.SiteDescription,
			Canonical:   site.BaseURL() + "/categories",
			Type:        "website",
		},
		Categories: countViews(categories, categoryPath),
		Tags:       countViews(tags, searchPath),
	}

	body, err := renderComponent(ctx, templates.CategoriesPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering categories page", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) searchHandler(ctx context.Context, input *searchInput) (*htmlResponse, error) {
	query := strings.TrimSpace(input.Query)
	settings := s.loadSettings(ctx)

	data := templates.SearchPageData{
		Site: s.site(ctx, settings),
		Meta: templates.Meta{
			Title:   "검색 | " + settings.SiteName,
			NoIndex: true,
		},
		Query: query,
	}

	if query != "" {
		results, err := s.blog.Search(ctx, query)
		if err != nil {
			s.recordError(ctx, err, "search request failed", logrus.Fields{"query": query})
			return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "검색을 처리하지 못했습니다.")
		}
		data.Results = postViews(results)
	}

	body, err := renderComponent(ctx, templates.SearchPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering search page", logrus.Fields{"query": query})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}
