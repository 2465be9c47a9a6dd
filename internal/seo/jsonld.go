package seo

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
)

const schemaContext = "https://schema.org"

// Site describes the publisher of every page.
type Site struct {
	Name        string
	Description string
	URL         string
}

// BaseURL returns the site URL without a trailing slash.
func (s Site) BaseURL() string {
	return strings.TrimRight(s.URL, "/")
}

// PostURL is the canonical address of a post.
func (s Site) PostURL(slug string) string {
	return s.BaseURL() + "/posts/" + url.PathEscape(slug)
}

// CategoryURL is the listing address of a category.
func (s Site) CategoryURL(category string) string {
	return s.BaseURL() + "/category/" + url.PathEscape(category)
}

func (s Site) organization() map[string]any {
	return map[string]any{
		"@type": "Organization",
		"name":  s.Name,
		"url":   s.BaseURL(),
	}
}

// WebsiteJSONLD returns a WebSite block with a search action.
func WebsiteJSONLD(site Site) string {
	return marshal(map[string]any{
		"@context":    schemaContext,
		"@type":       "WebSite",
		"name":        site.Name,
		"url":         site.BaseURL(),
		"description": site.Description,
		"inLanguage":  "ko-KR",
		"potentialAction": map[string]any{
			"@type": "SearchAction",
			"target": map[string]string{
				"@type":       "EntryPoint",
				"urlTemplate": site.BaseURL() + "/search?q={search_term_string}",
			},
			"query-input": "required name=search_term_string",
		},
	})
}

// OrganizationJSONLD returns the publisher Organization block.
func OrganizationJSONLD(site Site) string {
	org := site.organization()
	org["@context"] = schemaContext
	org["logo"] = site.BaseURL() + "/logo.png"
	org["description"] = site.Description
	return marshal(org)
}

// ArticleJSONLD returns the Article block for a post.
func ArticleJSONLD(site Site, post *blog.Post) string {
	publisher := site.organization()
	publisher["logo"] = map[string]string{
		"@type": "ImageObject",
		"url":   site.BaseURL() + "/logo.png",
	}

	data := map[string]any{
		"@context":      schemaContext,
		"@type":         "Article",
		"headline":      post.Title,
		"description":   post.DescriptionText(),
		"dateModified":  formatTime(post.UpdatedAt),
		"datePublished": formatTimePtr(post.PublishedAt),
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   site.PostURL(post.Slug),
		},
		"author":    site.organization(),
		"publisher": publisher,
	}
	if post.FeaturedImage != nil {
		data["image"] = *post.FeaturedImage
	}
	if len(post.SEOKeywords) > 0 {
		data["keywords"] = strings.Join(post.SEOKeywords, ", ")
	}
	return marshal(data)
}

// ProductJSONLD returns the Product block for posts carrying a price, and an
// empty string otherwise. The rating is synthetic, see SyntheticRatingFor.
func ProductJSONLD(site Site, post *blog.Post) string {
	if post.ProductPrice == nil {
		return ""
	}

	rating := SyntheticRatingFor(post.Slug)
	ratingValue := strconv.FormatFloat(rating.Value, 'f', -1, 64)

	data := map[string]any{
		"@context":    schemaContext,
		"@type":       "Product",
		"name":        post.ProductLabel(),
		"description": post.DescriptionText(),
		"category":    post.Category,
		"aggregateRating": map[string]string{
			"@type":       "AggregateRating",
			"ratingValue": ratingValue,
			"bestRating":  "5",
			"worstRating": "1",
			"reviewCount": strconv.Itoa(rating.ReviewCount),
		},
		"review": map[string]any{
			"@type": "Review",
			"reviewRating": map[string]string{
				"@type":       "Rating",
				"ratingValue": ratingValue,
				"bestRating":  "5",
				"worstRating": "1",
			},
			"author": map[string]string{
				"@type": "Organization",
				"name":  site.Name,
			},
			"reviewBody":    post.DescriptionText(),
			"datePublished": formatTimePtr(post.PublishedAt),
		},
		"offers": map[string]any{
			"@type":         "Offer",
			"url":           site.PostURL(post.Slug),
			"priceCurrency": "KRW",
			"price":         *post.ProductPrice,
			"availability":  "https://schema.org/InStock",
		},
	}
	if post.FeaturedImage != nil {
		data["image"] = *post.FeaturedImage
	}
	return marshal(data)
}

// BreadcrumbJSONLD returns the home, category, post trail.
func BreadcrumbJSONLD(site Site, post *blog.Post) string {
	items := []map[string]any{
		{"@type": "ListItem", "position": 1, "name": "홈", "item": site.BaseURL()},
		{"@type": "ListItem", "position": 2, "name": post.Category, "item": site.CategoryURL(post.Category)},
		{"@type": "ListItem", "position": 3, "name": post.Title, "item": site.PostURL(post.Slug)},
	}
	return marshal(map[string]any{
		"@context":        schemaContext,
		"@type":           "BreadcrumbList",
		"itemListElement": items,
	})
}

// FAQJSONLD returns a FAQPage block, or an empty string when the post has no FAQ.
func FAQJSONLD(post *blog.Post) string {
	if len(post.FAQ) == 0 {
		return ""
	}

	questions := make([]map[string]any, 0, len(post.FAQ))
	for _, item := range post.FAQ {
		questions = append(questions, map[string]any{
			"@type": "Question",
			"name":  item.Question,
			"acceptedAnswer": map[string]string{
				"@type": "Answer",
				"text":  item.Answer,
			},
		})
	}
	return marshal(map[string]any{
		"@context":   schemaContext,
		"@type":      "FAQPage",
		"mainEntity": questions,
	})
}

// PostJSONLD returns every non-empty block for a post page in render order.
func PostJSONLD(site Site, post *blog.Post) []string {
	blocks := []string{ArticleJSONLD(site, post)}
	if product := ProductJSONLD(site, post); product != "" {
		blocks = append(blocks, product)
	}
	blocks = append(blocks, BreadcrumbJSONLD(site, post))
	if faq := FAQJSONLD(post); faq != "" {
		blocks = append(blocks, faq)
	}
	return blocks
}

func marshal(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
