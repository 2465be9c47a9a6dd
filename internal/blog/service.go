package blog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/mangorocketofficial/tech-blog/internal/llm"
	"github.com/mangorocketofficial/tech-blog/internal/pagination"
	"github.com/mangorocketofficial/tech-blog/internal/slug"
)

const (
	// HomePageSize is the number of posts per listing page.
	HomePageSize = 9
	// RelatedLimit caps the related posts shown under an article.
	RelatedLimit = 3
	// PopularLimit caps the most viewed list on the home page.
	PopularLimit = 5
	// SearchLimit caps search results.
	SearchLimit = 20
	// FeedLimit caps RSS items.
	FeedLimit = 50

	// DefaultInfoCategory is assigned to generated posts unless configured otherwise.
	DefaultInfoCategory = "테니스 원리"

	generateSlugAttempts = 3
)

// SearchIndex is a full-text index over published posts.
type SearchIndex interface {
	IndexPost(ctx context.Context, post *Post) error
	RemovePost(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]string, error)
	Rebuild(ctx context.Context, posts []Post) error
}

// ServiceOptions wires the blog service.
type ServiceOptions struct {
	Repository   Repository
	Generator    llm.Generator
	Search       SearchIndex
	InfoCategory string
	Logger       *logrus.Logger
	SentryHub    *sentry.Hub
	Now          func() time.Time
}

// Service implements post lifecycle, listings and settings on top of a Repository.
type Service struct {
	repo         Repository
	generator    llm.Generator
	search       SearchIndex
	infoCategory string
	logger       *logrus.Logger
	sentryHub    *sentry.Hub
	now          func() time.Time
}

// NewService validates options and builds a Service. Generator and Search are optional.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Repository == nil {
		return nil, eris.New("blog repository is required")
	}

	infoCategory := strings.TrimSpace(opts.InfoCategory)
	if infoCategory == "" {
		infoCategory = DefaultInfoCategory
	}

	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:         opts.Repository,
		generator:    opts.Generator,
		search:       opts.Search,
		infoCategory: infoCategory,
		logger:       opts.Logger,
		sentryHub:    opts.SentryHub,
		now:          now,
	}, nil
}

// GeneratorEnabled reports whether AI generation is configured.
func (s *Service) GeneratorEnabled() bool {
	return s.generator != nil
}

// CreatePost validates and stores a new post.
func (s *Service) CreatePost(ctx context.Context, input PostInput) (*Post, error) {
	input = input.normalize()
	if err := input.validateCreate(); err != nil {
		return nil, err
	}

	exists, err := s.repo.SlugExists(ctx, *input.Slug, "")
	if err != nil {
		s.recordError(logrus.Fields{"slug": *input.Slug}, err, "checking slug availability")
		return nil, eris.Wrap(err, "checking slug availability")
	}
	if exists {
		return nil, eris.Wrapf(ErrSlugTaken, "creating post: %s", *input.Slug)
	}

	post := &Post{Tags: StringList{}, SEOKeywords: StringList{}, FAQ: []FAQItem{}}
	s.applyInput(post, input)

	if err := s.repo.CreatePost(ctx, post); err != nil {
		if !eris.Is(err, ErrSlugTaken) {
			s.recordError(logrus.Fields{"slug": post.Slug}, err, "creating post")
		}
		return nil, eris.Wrap(err, "creating post")
	}

	s.syncIndex(ctx, post)
	return post, nil
}

// UpdatePost applies every provided field of input to the post.
func (s *Service) UpdatePost(ctx context.Context, id string, input PostInput) (*Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, eris.Wrap(ErrInvalidInput, "post id is required")
	}

	input = input.normalize()
	if err := input.validateOptional(); err != nil {
		return nil, err
	}
	for field, value := range map[string]*string{"title": input.Title, "slug": input.Slug, "content": input.Content, "category": input.Category} {
		if value != nil && *value == "" {
			return nil, eris.Wrapf(ErrInvalidInput, "%s cannot be empty", field)
		}
	}

	post, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Slug != nil && *input.Slug != post.Slug {
		exists, err := s.repo.SlugExists(ctx, *input.Slug, post.ID)
		if err != nil {
			s.recordError(logrus.Fields{"slug": *input.Slug}, err, "checking slug availability")
			return nil, eris.Wrap(err, "checking slug availability")
		}
		if exists {
			return nil, eris.Wrapf(ErrSlugTaken, "updating post: %s", *input.Slug)
		}
	}

	s.applyInput(post, input)
	return s.savePost(ctx, post)
}

// PatchPost applies a partial update restricted to the PatchInput fields.
func (s *Service) PatchPost(ctx context.Context, id string, input PatchInput) (*Post, error) {
	if input.empty() {
		return nil, ErrNoFields
	}
	return s.UpdatePost(ctx, id, input.asPostInput())
}

// DeletePost removes a post.
func (s *Service) DeletePost(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return eris.Wrap(ErrInvalidInput, "post id is required")
	}

	deleted, err := s.repo.DeletePost(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"post_id": id}, err, "deleting post")
		return eris.Wrap(err, "deleting post")
	}
	if !deleted {
		return eris.Wrapf(ErrNotFound, "deleting post: %s", id)
	}

	if s.search != nil {
		if err := s.search.RemovePost(ctx, id); err != nil {
			s.logWarning(logrus.Fields{"post_id": id}, err, "removing post from search index")
		}
	}
	return nil
}

// GetPost returns any post, published or not.
func (s *Service) GetPost(ctx context.Context, id string) (*Post, error) {
	return s.loadPost(ctx, strings.TrimSpace(id))
}

// ListAllPosts returns every post for the admin dashboard.
func (s *Service) ListAllPosts(ctx context.Context) ([]Post, error) {
	posts, err := s.repo.ListAll(ctx)
	if err != nil {
		s.recordError(nil, err, "listing posts")
		return nil, eris.Wrap(err, "listing posts")
	}
	return posts, nil
}

// NextDraftSlug suggests the next "tech-N" slug for the admin form.
func (s *Service) NextDraftSlug(ctx context.Context) (string, error) {
	return s.nextSlug(ctx, slug.DraftPrefix)
}

// NextCanonicalSlug returns the slug the next generated post would receive.
func (s *Service) NextCanonicalSlug(ctx context.Context) (string, error) {
	return s.nextSlug(ctx, slug.CanonicalPrefix)
}

func (s *Service) nextSlug(ctx context.Context, prefix string) (string, error) {
	slugs, err := s.repo.ListSlugs(ctx)
	if err != nil {
		s.recordError(logrus.Fields{"prefix": prefix}, err, "listing slugs")
		return "", eris.Wrap(err, "listing slugs")
	}
	return slug.Next(slugs, prefix), nil
}

// GenerateInfoPost asks the generator for an article on topic and publishes it
// under the next canonical slug. A slug collision at insert time triggers a
// recomputation, up to a fixed number of attempts.
func (s *Service) GenerateInfoPost(ctx context.Context, topic string) (*Post, error) {
	if s.generator == nil {
		return nil, ErrGeneratorUnavailable
	}

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, eris.Wrap(ErrInvalidInput, "topic is required")
	}

	generated, err := s.generator.Generate(ctx, topic)
	if err != nil {
		s.recordError(logrus.Fields{"topic": topic}, err, "generating info post")
		return nil, eris.Wrap(err, "generating info post")
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}

	title := generated.Title
	if title == "" {
		title = topic + " - " + settings.SiteName
	}
	description := generated.Description
	if description == "" {
		description = topic + "에 대해 물리원리와 인체구조로 설명합니다."
	}

	faq := make([]FAQItem, 0, len(generated.FAQ))
	for _, item := range generated.FAQ {
		faq = append(faq, FAQItem{Question: item.Question, Answer: item.Answer})
	}

	now := s.now()
	wordCount := WordCount(generated.Content)
	post := &Post{
		Title:       title,
		Description: &description,
		Content:     generated.Content,
		Category:    s.infoCategory,
		Tags:        cleanList(generated.Tags),
		SEOKeywords: cleanList(generated.SEOKeywords),
		FAQ:         faq,
		WordCount:   &wordCount,
		IsPublished: true,
		PublishedAt: &now,
	}

	for attempt := 1; ; attempt++ {
		post.Slug, err = s.NextCanonicalSlug(ctx)
		if err != nil {
			return nil, err
		}

		err = s.repo.CreatePost(ctx, post)
		if err == nil {
			break
		}
		if !eris.Is(err, ErrSlugTaken) || attempt >= generateSlugAttempts {
			s.recordError(logrus.Fields{"slug": post.Slug, "attempt": attempt}, err, "storing generated post")
			return nil, eris.Wrap(err, "storing generated post")
		}
		post.ID = ""
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"slug": post.Slug, "topic": topic}).Info("info post created")
	}

	s.syncIndex(ctx, post)
	return post, nil
}

// PublishedPage is one page of the public listing.
type PublishedPage struct {
	Posts      []Post
	Page       int
	TotalPages int
	Total      int64
	Markers    []pagination.Marker
}

// PublishedPage returns the requested listing page, clamped to the available range.
func (s *Service) PublishedPage(ctx context.Context, page int) (*PublishedPage, error) {
	total, err := s.repo.CountPublished(ctx)
	if err != nil {
		s.recordError(nil, err, "counting published posts")
		return nil, eris.Wrap(err, "counting published posts")
	}

	totalPages := pagination.TotalPages(total, HomePageSize)
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	posts, err := s.repo.ListPublished(ctx, pagination.Offset(page, HomePageSize), HomePageSize)
	if err != nil {
		s.recordError(logrus.Fields{"page": page}, err, "listing published posts")
		return nil, eris.Wrap(err, "listing published posts")
	}

	return &PublishedPage{
		Posts:      posts,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		Markers:    pagination.Markers(page, totalPages),
	}, nil
}

// ViewPost returns a published post by slug and counts the view.
func (s *Service) ViewPost(ctx context.Context, postSlug string) (*Post, error) {
	post, err := s.repo.GetBySlug(ctx, postSlug, true)
	if err != nil {
		s.recordError(logrus.Fields{"slug": postSlug}, err, "loading post")
		return nil, eris.Wrap(err, "loading post")
	}
	if post == nil {
		return nil, eris.Wrapf(ErrNotFound, "loading post: %s", postSlug)
	}

	if err := s.repo.IncrementViewCount(ctx, post.ID); err != nil {
		s.logWarning(logrus.Fields{"post_id": post.ID}, err, "incrementing view count")
	} else {
		post.ViewCount++
	}

	return post, nil
}

// RelatedPosts lists other published posts in the same category.
func (s *Service) RelatedPosts(ctx context.Context, post *Post) ([]Post, error) {
	posts, err := s.repo.ListRelated(ctx, post.Slug, post.Category, RelatedLimit)
	if err != nil {
		s.recordError(logrus.Fields{"slug": post.Slug}, err, "listing related posts")
		return nil, eris.Wrap(err, "listing related posts")
	}
	return posts, nil
}

// PopularPosts lists the most viewed published posts.
func (s *Service) PopularPosts(ctx context.Context) ([]Post, error) {
	posts, err := s.repo.ListPopular(ctx, PopularLimit)
	if err != nil {
		s.recordError(nil, err, "listing popular posts")
		return nil, eris.Wrap(err, "listing popular posts")
	}
	return posts, nil
}

// PostsByCategory lists the published posts of a category.
func (s *Service) PostsByCategory(ctx context.Context, category string) ([]Post, error) {
	posts, err := s.repo.ListPublishedByCategory(ctx, strings.TrimSpace(category))
	if err != nil {
		s.recordError(logrus.Fields{"category": category}, err, "listing posts by category")
		return nil, eris.Wrap(err, "listing posts by category")
	}
	return posts, nil
}

// Count is a label with the number of published posts carrying it.
type Count struct {
	Name  string
	Count int
}

// CategoryCounts counts published posts per category in the order of the
// configured category list, followed by categories only present on posts.
func (s *Service) CategoryCounts(ctx context.Context) ([]Count, error) {
	facets, err := s.repo.ListFacets(ctx)
	if err != nil {
		s.recordError(nil, err, "listing facets")
		return nil, eris.Wrap(err, "listing facets")
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, facet := range facets {
		category := strings.TrimSpace(facet.Category)
		if category == "" {
			category = DefaultCategory
		}
		counts[category]++
	}

	result := make([]Count, 0, len(counts))
	seen := make(map[string]bool)
	for _, category := range settings.Categories {
		if seen[category] {
			continue
		}
		seen[category] = true
		result = append(result, Count{Name: category, Count: counts[category]})
	}

	var extra []Count
	for category, n := range counts {
		if !seen[category] {
			extra = append(extra, Count{Name: category, Count: n})
		}
	}
	sortCounts(extra)

	return append(result, extra...), nil
}

// TagCounts counts published posts per tag, most used first.
func (s *Service) TagCounts(ctx context.Context) ([]Count, error) {
	facets, err := s.repo.ListFacets(ctx)
	if err != nil {
		s.recordError(nil, err, "listing facets")
		return nil, eris.Wrap(err, "listing facets")
	}

	counts := make(map[string]int)
	for _, facet := range facets {
		for _, tag := range facet.Tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				counts[tag]++
			}
		}
	}

	result := make([]Count, 0, len(counts))
	for tag, n := range counts {
		result = append(result, Count{Name: tag, Count: n})
	}
	sortCounts(result)
	return result, nil
}

func sortCounts(counts []Count) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})
}

// Search finds published posts matching query. The full-text index is used
// when configured; otherwise the repository performs a substring match.
func (s *Service) Search(ctx context.Context, query string) ([]Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Post{}, nil
	}

	if s.search != nil {
		ids, err := s.search.Search(ctx, query, SearchLimit)
		if err == nil {
			posts, err := s.repo.ListPublishedByIDs(ctx, ids)
			if err != nil {
				s.recordError(logrus.Fields{"query": query}, err, "loading search results")
				return nil, eris.Wrap(err, "loading search results")
			}
			return posts, nil
		}
		s.logWarning(logrus.Fields{"query": query}, err, "search index query failed, falling back to database")
	}

	posts, err := s.repo.SearchPublished(ctx, query, SearchLimit)
	if err != nil {
		s.recordError(logrus.Fields{"query": query}, err, "searching posts")
		return nil, eris.Wrap(err, "searching posts")
	}
	return posts, nil
}

// FeedPosts returns the newest published posts for the RSS feed.
func (s *Service) FeedPosts(ctx context.Context) ([]Post, error) {
	posts, err := s.repo.ListPublished(ctx, 0, FeedLimit)
	if err != nil {
		s.recordError(nil, err, "listing feed posts")
		return nil, eris.Wrap(err, "listing feed posts")
	}
	return posts, nil
}

// SitemapEntries returns every published post slug with its modification time.
func (s *Service) SitemapEntries(ctx context.Context) ([]SitemapEntry, error) {
	entries, err := s.repo.ListSitemapEntries(ctx)
	if err != nil {
		s.recordError(nil, err, "listing sitemap entries")
		return nil, eris.Wrap(err, "listing sitemap entries")
	}
	return entries, nil
}

// Reindex rebuilds the search index from the published posts.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, eris.New("search index is not configured")
	}

	posts, err := s.repo.ListPublished(ctx, 0, 0)
	if err != nil {
		s.recordError(nil, err, "listing posts for reindex")
		return 0, eris.Wrap(err, "listing posts for reindex")
	}

	if err := s.search.Rebuild(ctx, posts); err != nil {
		s.recordError(nil, err, "rebuilding search index")
		return 0, eris.Wrap(err, "rebuilding search index")
	}

	return len(posts), nil
}

func (s *Service) loadPost(ctx context.Context, id string) (*Post, error) {
	if id == "" {
		return nil, eris.Wrap(ErrInvalidInput, "post id is required")
	}

	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"post_id": id}, err, "loading post")
		return nil, eris.Wrap(err, "loading post")
	}
	if post == nil {
		return nil, eris.Wrapf(ErrNotFound, "loading post: %s", id)
	}
	return post, nil
}

func (s *Service) savePost(ctx context.Context, post *Post) (*Post, error) {
	if err := s.repo.SavePost(ctx, post); err != nil {
		if !eris.Is(err, ErrSlugTaken) {
			s.recordError(logrus.Fields{"post_id": post.ID}, err, "saving post")
		}
		return nil, eris.Wrap(err, "saving post")
	}

	s.syncIndex(ctx, post)
	return post, nil
}

// applyInput copies provided fields onto post and clears fields sent as null.
// Content changes recompute the word count; the first publication stamps published_at.
func (s *Service) applyInput(post *Post, in PostInput) {
	if in.Title != nil {
		post.Title = *in.Title
	}
	if in.Slug != nil {
		post.Slug = *in.Slug
	}
	if in.Description != nil {
		post.Description = nullable(*in.Description)
	}
	if in.Content != nil {
		post.Content = *in.Content
		words := WordCount(post.Content)
		post.WordCount = &words
	}
	if in.FeaturedImage != nil {
		post.FeaturedImage = nullable(*in.FeaturedImage)
	}
	if in.CoupangURL != nil {
		post.CoupangURL = nullable(*in.CoupangURL)
	}
	if in.CoupangProductID != nil {
		post.CoupangProductID = nullable(*in.CoupangProductID)
	}
	if in.ProductName != nil {
		post.ProductName = nullable(*in.ProductName)
	}
	if in.ProductPrice != nil {
		if *in.ProductPrice == 0 {
			post.ProductPrice = nil
		} else {
			price := *in.ProductPrice
			post.ProductPrice = &price
		}
	}
	if in.Category != nil {
		post.Category = *in.Category
	}
	if in.Tags != nil {
		post.Tags = cleanList(*in.Tags)
	}
	if in.SEOKeywords != nil {
		post.SEOKeywords = cleanList(*in.SEOKeywords)
	}
	if in.FAQ != nil {
		post.FAQ = append([]FAQItem{}, (*in.FAQ)...)
	}
	if in.IsPublished != nil {
		post.IsPublished = *in.IsPublished
	}
	for _, field := range in.Null {
		switch field {
		case FieldDescription:
			post.Description = nil
		case FieldFeaturedImage:
			post.FeaturedImage = nil
		case FieldCoupangURL:
			post.CoupangURL = nil
		case FieldCoupangProductID:
			post.CoupangProductID = nil
		case FieldProductName:
			post.ProductName = nil
		case FieldProductPrice:
			post.ProductPrice = nil
		}
	}
	if post.IsPublished && post.PublishedAt == nil {
		now := s.now()
		post.PublishedAt = &now
	}
}

func (s *Service) syncIndex(ctx context.Context, post *Post) {
	if s.search == nil {
		return
	}

	var err error
	if post.IsPublished {
		err = s.search.IndexPost(ctx, post)
	} else {
		err = s.search.RemovePost(ctx, post.ID)
	}
	if err != nil {
		s.logWarning(logrus.Fields{"post_id": post.ID}, err, "updating search index")
	}
}

func (s *Service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}

func (s *Service) logWarning(fields logrus.Fields, err error, message string) {
	if s.logger == nil || err == nil {
		return
	}
	s.logger.WithFields(fields).WithField("error", err.Error()).Warn(message)
}
