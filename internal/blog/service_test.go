package blog

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"

	"github.com/mangorocketofficial/tech-blog/internal/llm"
)

func validInput(slugValue string) PostInput {
	return PostInput{
		Title:    strPtr("아이폰 16 리뷰"),
		Slug:     strPtr(slugValue),
		Content:  strPtr("<p>one two three</p>"),
		Category: strPtr("모바일 기술"),
		Tags:     listPtr("애플", " ", "리뷰"),
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	t.Parallel()

	if _, err := NewService(ServiceOptions{}); err == nil {
		t.Fatalf("expected error when repository is missing")
	}
}

func TestCreatePostValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)

	input := validInput("tech-1")
	input.Category = strPtr("   ")

	_, err := service.CreatePost(context.Background(), input)
	if !eris.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing required fields") {
		t.Fatalf("expected missing fields message, got %v", err)
	}
}

func TestCreatePostRejectsInvalidAffiliateURL(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)

	input := validInput("tech-1")
	input.CoupangURL = strPtr("not a url")

	_, err := service.CreatePost(context.Background(), input)
	if !eris.Is(err, ErrInvalidInput) || !strings.Contains(err.Error(), "coupang_url") {
		t.Fatalf("expected invalid coupang_url error, got %v", err)
	}
}

func TestCreatePostComputesDerivedFields(t *testing.T) {
	t.Parallel()

	index := newStubIndex()
	service, _ := setupService(t, nil, index)
	ctx := context.Background()

	draft, err := service.CreatePost(ctx, validInput("tech-1"))
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
	if draft.WordCount == nil || *draft.WordCount != 3 {
		t.Fatalf("expected word count 3, got %v", draft.WordCount)
	}
	if draft.PublishedAt != nil {
		t.Fatalf("expected draft to have no published_at")
	}
	if len(draft.Tags) != 2 {
		t.Fatalf("expected blank tags dropped, got %v", draft.Tags)
	}
	if _, ok := index.indexed[draft.ID]; ok {
		t.Fatalf("expected drafts to stay out of the search index")
	}

	input := validInput("tech-2")
	input.IsPublished = boolPtr(true)
	input.Description = strPtr("")
	published, err := service.CreatePost(ctx, input)
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
	if published.PublishedAt == nil {
		t.Fatalf("expected published_at to be set")
	}
	if published.Description != nil {
		t.Fatalf("expected empty description stored as NULL")
	}
	if _, ok := index.indexed[published.ID]; !ok {
		t.Fatalf("expected published post to be indexed")
	}
}

func TestCreatePostRejectsDuplicateSlug(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	ctx := context.Background()

	if _, err := service.CreatePost(ctx, validInput("tech-1")); err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	_, err := service.CreatePost(ctx, validInput(" tech-1 "))
	if !eris.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestPublishedAtIsSetOnceAndNeverCleared(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	ctx := context.Background()

	post, err := service.CreatePost(ctx, validInput("tech-1"))
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	post, err = service.PatchPost(ctx, post.ID, PatchInput{IsPublished: boolPtr(true)})
	if err != nil {
		t.Fatalf("PatchPost returned error: %v", err)
	}
	if post.PublishedAt == nil {
		t.Fatalf("expected published_at after first publish")
	}
	first := *post.PublishedAt

	post, err = service.PatchPost(ctx, post.ID, PatchInput{IsPublished: boolPtr(false)})
	if err != nil {
		t.Fatalf("PatchPost returned error: %v", err)
	}
	if post.PublishedAt == nil || !post.PublishedAt.Equal(first) {
		t.Fatalf("expected published_at kept after unpublish, got %v", post.PublishedAt)
	}

	post, err = service.UpdatePost(ctx, post.ID, PostInput{IsPublished: boolPtr(true), Title: strPtr("새 제목")})
	if err != nil {
		t.Fatalf("UpdatePost returned error: %v", err)
	}
	if !post.PublishedAt.Equal(first) {
		t.Fatalf("expected published_at unchanged on republish, got %v want %v", post.PublishedAt, first)
	}
}

func TestPatchPostRecomputesWordCount(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	ctx := context.Background()

	post, err := service.CreatePost(ctx, validInput("tech-1"))
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	post, err = service.PatchPost(ctx, post.ID, PatchInput{Content: strPtr("<h2>a b</h2>\n<p>c d e</p>")})
	if err != nil {
		t.Fatalf("PatchPost returned error: %v", err)
	}
	if post.WordCount == nil || *post.WordCount != 5 {
		t.Fatalf("expected word count 5, got %v", post.WordCount)
	}

	stored, err := service.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPost returned error: %v", err)
	}
	if *stored.WordCount != 5 {
		t.Fatalf("expected persisted word count 5, got %d", *stored.WordCount)
	}
}

func TestPatchPostRequiresFields(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)

	_, err := service.PatchPost(context.Background(), "any", PatchInput{})
	if !eris.Is(err, ErrNoFields) {
		t.Fatalf("expected ErrNoFields, got %v", err)
	}
}

func TestUpdatePostSlugCollision(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	ctx := context.Background()

	if _, err := service.CreatePost(ctx, validInput("tech-1")); err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
	second, err := service.CreatePost(ctx, validInput("tech-2"))
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	_, err = service.UpdatePost(ctx, second.ID, PostInput{Slug: strPtr("tech-1")})
	if !eris.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}

	if _, err := service.UpdatePost(ctx, "missing", PostInput{Title: strPtr("x")}); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePostClearsNullFields(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	ctx := context.Background()

	price := 12000.0
	input := validInput("tech-1")
	input.Description = strPtr("desc")
	input.FeaturedImage = strPtr("https://x/img.png")
	input.ProductName = strPtr("p")
	input.ProductPrice = &price
	post, err := service.CreatePost(ctx, input)
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	updated, err := service.UpdatePost(ctx, post.ID, PostInput{
		Null: []Field{FieldDescription, FieldFeaturedImage, FieldProductName, FieldProductPrice},
	})
	if err != nil {
		t.Fatalf("UpdatePost returned error: %v", err)
	}
	if updated.Description != nil || updated.FeaturedImage != nil || updated.ProductName != nil || updated.ProductPrice != nil {
		t.Fatalf("expected nullable fields cleared, got %+v", updated)
	}

	stored, err := service.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPost returned error: %v", err)
	}
	if stored.Description != nil || stored.ProductPrice != nil {
		t.Fatalf("expected cleared fields persisted, got %+v", stored)
	}
	if stored.Title != post.Title {
		t.Fatalf("expected untouched title, got %q", stored.Title)
	}
}

func TestPatchPostOnlyClearsPatchableFields(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	ctx := context.Background()

	input := validInput("tech-1")
	input.Description = strPtr("desc")
	input.ProductName = strPtr("p")
	post, err := service.CreatePost(ctx, input)
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	if _, err := service.PatchPost(ctx, post.ID, PatchInput{Null: []Field{FieldProductName}}); !eris.Is(err, ErrNoFields) {
		t.Fatalf("expected ErrNoFields for a non-patchable null, got %v", err)
	}

	patched, err := service.PatchPost(ctx, post.ID, PatchInput{Null: []Field{FieldDescription, FieldProductName}})
	if err != nil {
		t.Fatalf("PatchPost returned error: %v", err)
	}
	if patched.Description != nil {
		t.Fatalf("expected description cleared, got %q", *patched.Description)
	}
	if patched.ProductName == nil || *patched.ProductName != "p" {
		t.Fatalf("expected product name kept, got %v", patched.ProductName)
	}
}

func TestNullFields(t *testing.T) {
	t.Parallel()

	fields, err := NullFields([]byte(`{"id":"1","description":null,"title":null,"product_price": null,"product_name":"x"}`))
	if err != nil {
		t.Fatalf("NullFields returned error: %v", err)
	}
	if len(fields) != 2 || fields[0] != FieldDescription || fields[1] != FieldProductPrice {
		t.Fatalf("unexpected null fields %v", fields)
	}

	if fields, err := NullFields(nil); err != nil || fields != nil {
		t.Fatalf("expected nothing for an empty body, got %v %v", fields, err)
	}

	if _, err := NullFields([]byte(`[1,2]`)); !eris.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a non-object body, got %v", err)
	}
}

func TestDeletePost(t *testing.T) {
	t.Parallel()

	index := newStubIndex()
	service, _ := setupService(t, nil, index)
	ctx := context.Background()

	input := validInput("tech-1")
	input.IsPublished = boolPtr(true)
	post, err := service.CreatePost(ctx, input)
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	if err := service.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("DeletePost returned error: %v", err)
	}
	if _, ok := index.indexed[post.ID]; ok {
		t.Fatalf("expected post removed from index")
	}
	if err := service.DeletePost(ctx, post.ID); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestNextDraftSlug(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	ctx := context.Background()

	for _, s := range []string{"tech-3", "tech-1", "테크-9", "other"} {
		if _, err := service.CreatePost(ctx, validInput(s)); err != nil {
			t.Fatalf("CreatePost returned error: %v", err)
		}
	}

	draft, err := service.NextDraftSlug(ctx)
	if err != nil {
		t.Fatalf("NextDraftSlug returned error: %v", err)
	}
	if draft != "tech-4" {
		t.Fatalf("expected tech-4, got %q", draft)
	}

	canonical, err := service.NextCanonicalSlug(ctx)
	if err != nil {
		t.Fatalf("NextCanonicalSlug returned error: %v", err)
	}
	if canonical != "테크-10" {
		t.Fatalf("expected 테크-10, got %q", canonical)
	}
}

func TestGenerateInfoPost(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{post: &llm.InfoPost{
		Content:     "<h2>서브</h2>\n<p>회전과 속도</p>",
		Tags:        []string{"서브"},
		SEOKeywords: []string{"서브 원리"},
		FAQ:         []llm.FAQ{{Question: "Q", Answer: "A"}},
	}}
	index := newStubIndex()
	service, _ := setupService(t, generator, index)
	ctx := context.Background()

	if _, err := service.CreatePost(ctx, validInput("테크-4")); err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	post, err := service.GenerateInfoPost(ctx, " 서브 ")
	if err != nil {
		t.Fatalf("GenerateInfoPost returned error: %v", err)
	}

	if post.Slug != "테크-5" {
		t.Fatalf("expected slug 테크-5, got %q", post.Slug)
	}
	if post.Title != "서브 - 테크매니아" {
		t.Fatalf("expected fallback title, got %q", post.Title)
	}
	if post.DescriptionText() == "" {
		t.Fatalf("expected fallback description")
	}
	if post.Category != DefaultInfoCategory {
		t.Fatalf("expected category %q, got %q", DefaultInfoCategory, post.Category)
	}
	if !post.IsPublished || post.PublishedAt == nil {
		t.Fatalf("expected generated post to be published")
	}
	if post.WordCount == nil || *post.WordCount != 3 {
		t.Fatalf("expected word count 3, got %v", post.WordCount)
	}
	if post.CoupangURL != nil || post.ProductPrice != nil {
		t.Fatalf("expected no affiliate fields on generated post")
	}
	if len(post.FAQ) != 1 {
		t.Fatalf("expected faq copied, got %v", post.FAQ)
	}
	if _, ok := index.indexed[post.ID]; !ok {
		t.Fatalf("expected generated post indexed")
	}
}

func TestGenerateInfoPostRequiresGeneratorAndTopic(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	if _, err := service.GenerateInfoPost(context.Background(), "topic"); !eris.Is(err, ErrGeneratorUnavailable) {
		t.Fatalf("expected ErrGeneratorUnavailable, got %v", err)
	}

	generator := &stubGenerator{post: &llm.InfoPost{Content: "x"}}
	service, _ = setupService(t, generator, nil)
	if _, err := service.GenerateInfoPost(context.Background(), "  "); !eris.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if generator.calls != 0 {
		t.Fatalf("expected generator not to be called for a blank topic")
	}
}

func TestGenerateInfoPostRetriesOnSlugCollision(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{post: &llm.InfoPost{Title: "T", Content: "x"}}
	repo := setupRepository(t)
	racing := &racingRepository{Repository: repo, stolen: "테크-1"}

	service, err := NewService(ServiceOptions{Repository: racing, Generator: generator, Logger: silentLogger()})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	post, err := service.GenerateInfoPost(context.Background(), "topic")
	if err != nil {
		t.Fatalf("GenerateInfoPost returned error: %v", err)
	}
	if post.Slug != "테크-2" {
		t.Fatalf("expected retry to land on 테크-2, got %q", post.Slug)
	}
}

// racingRepository inserts a competing post right before the first create.
type racingRepository struct {
	Repository
	stolen string
	raced  bool
}

func (r *racingRepository) CreatePost(ctx context.Context, post *Post) error {
	if !r.raced {
		r.raced = true
		competitor := &Post{Slug: r.stolen, Title: "other", Content: "x", Category: "기타"}
		if err := r.Repository.CreatePost(ctx, competitor); err != nil {
			return err
		}
	}
	return r.Repository.CreatePost(ctx, post)
}

func TestPublishedPageClampsAndBuildsMarkers(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	ctx := context.Background()

	for i := 0; i < HomePageSize*2+1; i++ {
		input := validInput("p-" + string(rune('a'+i)))
		input.IsPublished = boolPtr(true)
		if _, err := service.CreatePost(ctx, input); err != nil {
			t.Fatalf("CreatePost returned error: %v", err)
		}
	}

	page, err := service.PublishedPage(ctx, 99)
	if err != nil {
		t.Fatalf("PublishedPage returned error: %v", err)
	}
	if page.TotalPages != 3 || page.Page != 3 {
		t.Fatalf("expected clamped page 3 of 3, got %d of %d", page.Page, page.TotalPages)
	}
	if len(page.Posts) != 1 {
		t.Fatalf("expected 1 post on the last page, got %d", len(page.Posts))
	}
	if len(page.Markers) != 3 {
		t.Fatalf("expected 3 markers, got %v", page.Markers)
	}

	empty, _ := setupService(t, nil, nil)
	first, err := empty.PublishedPage(ctx, 0)
	if err != nil {
		t.Fatalf("PublishedPage returned error: %v", err)
	}
	if first.TotalPages != 0 || len(first.Markers) != 0 || len(first.Posts) != 0 {
		t.Fatalf("expected empty listing, got %+v", first)
	}
}

func TestViewPostCountsViewsAndHidesDrafts(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	ctx := context.Background()

	if _, err := service.CreatePost(ctx, validInput("draft")); err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
	if _, err := service.ViewPost(ctx, "draft"); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected drafts to be hidden, got %v", err)
	}

	input := validInput("live")
	input.IsPublished = boolPtr(true)
	if _, err := service.CreatePost(ctx, input); err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	if _, err := service.ViewPost(ctx, "live"); err != nil {
		t.Fatalf("ViewPost returned error: %v", err)
	}
	post, err := service.ViewPost(ctx, "live")
	if err != nil {
		t.Fatalf("ViewPost returned error: %v", err)
	}
	if post.ViewCount != 2 {
		t.Fatalf("expected 2 views, got %d", post.ViewCount)
	}
}

func TestCategoryAndTagCounts(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t, nil, nil)
	ctx := context.Background()

	seed := []struct {
		slug     string
		category string
		tags     []string
	}{
		{"a", "모바일 기술", []string{"애플", "리뷰"}},
		{"b", "모바일 기술", []string{"리뷰"}},
		{"c", "드론", []string{"리뷰", "DJI"}},
	}
	for _, item := range seed {
		input := validInput(item.slug)
		input.Category = strPtr(item.category)
		input.Tags = listPtr(item.tags...)
		input.IsPublished = boolPtr(true)
		if _, err := service.CreatePost(ctx, input); err != nil {
			t.Fatalf("CreatePost returned error: %v", err)
		}
	}

	categories, err := service.CategoryCounts(ctx)
	if err != nil {
		t.Fatalf("CategoryCounts returned error: %v", err)
	}
	defaults := DefaultSettings().Categories
	if len(categories) != len(defaults)+1 {
		t.Fatalf("expected configured categories plus one extra, got %v", categories)
	}
	if categories[1].Name != "모바일 기술" || categories[1].Count != 2 {
		t.Fatalf("expected 모바일 기술 with 2 posts, got %+v", categories[1])
	}
	last := categories[len(categories)-1]
	if last.Name != "드론" || last.Count != 1 {
		t.Fatalf("expected unconfigured category appended, got %+v", last)
	}

	tags, err := service.TagCounts(ctx)
	if err != nil {
		t.Fatalf("TagCounts returned error: %v", err)
	}
	if len(tags) != 3 || tags[0].Name != "리뷰" || tags[0].Count != 3 {
		t.Fatalf("expected 리뷰 first with 3, got %+v", tags)
	}
}

func TestSearchUsesIndexThenFallsBack(t *testing.T) {
	t.Parallel()

	index := newStubIndex()
	service, _ := setupService(t, nil, index)
	ctx := context.Background()

	input := validInput("tech-1")
	input.IsPublished = boolPtr(true)
	post, err := service.CreatePost(ctx, input)
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	index.results = []string{post.ID, "unknown"}
	results, err := service.Search(ctx, "anything")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 1 || results[0].ID != post.ID {
		t.Fatalf("expected indexed hit, got %v", slugsOf(results))
	}

	index.err = eris.New("index offline")
	results, err = service.Search(ctx, "아이폰")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected database fallback hit, got %v", slugsOf(results))
	}

	empty, err := service.Search(ctx, "   ")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no results for blank query, got %v, %v", empty, err)
	}
}

func TestSettingsDefaultsAndLazyCreate(t *testing.T) {
	t.Parallel()

	service, repo := setupService(t, nil, nil)
	ctx := context.Background()

	settings, err := service.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings returned error: %v", err)
	}
	if settings.SiteName != "테크매니아" || len(settings.Categories) != 9 {
		t.Fatalf("expected defaults, got %+v", settings)
	}

	stored, err := repo.GetSettings(ctx)
	if err != nil || stored != nil {
		t.Fatalf("expected reading not to persist defaults, got %v, %v", stored, err)
	}

	if _, err := service.UpdateSettings(ctx, SettingsInput{}); !eris.Is(err, ErrNoFields) {
		t.Fatalf("expected ErrNoFields, got %v", err)
	}

	updated, err := service.UpdateSettings(ctx, SettingsInput{SiteDescription: strPtr("새 설명")})
	if err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}
	if updated.SiteName != "블로그" || len(updated.Categories) != 1 || updated.Categories[0] != DefaultCategory {
		t.Fatalf("expected first write to seed minimal values, got %+v", updated)
	}

	updated, err = service.UpdateSettings(ctx, SettingsInput{Categories: listPtr("B", "A", "B", " ")})
	if err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}
	if len(updated.Categories) != 2 || updated.Categories[0] != "B" || updated.SiteDescription != "새 설명" {
		t.Fatalf("expected ordered deduplicated categories and kept description, got %+v", updated)
	}
}

func TestReindexRebuildsFromPublishedPosts(t *testing.T) {
	t.Parallel()

	index := newStubIndex()
	service, _ := setupService(t, nil, index)
	ctx := context.Background()

	input := validInput("tech-1")
	input.IsPublished = boolPtr(true)
	if _, err := service.CreatePost(ctx, input); err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
	if _, err := service.CreatePost(ctx, validInput("tech-2")); err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	count, err := service.Reindex(ctx)
	if err != nil {
		t.Fatalf("Reindex returned error: %v", err)
	}
	if count != 1 || len(index.indexed) != 1 {
		t.Fatalf("expected one published post indexed, got %d (%d)", count, len(index.indexed))
	}
}
