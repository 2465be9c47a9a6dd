package blog

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
)

func TestNewRepositoryRequiresDatabase(t *testing.T) {
	t.Parallel()

	if _, err := NewRepository(nil, nil); err == nil {
		t.Fatalf("expected error when database is nil")
	}
}

func TestRepositoryRoundTripsListsAndFAQ(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()

	price := 129000.0
	post := &Post{
		Slug:         "tech-1",
		Title:        "갤럭시 리뷰",
		Content:      "<p>본문</p>",
		Category:     "모바일 기술",
		ProductPrice: &price,
		Tags:         StringList{"삼성", "with,comma", `quote"d`},
		SEOKeywords:  StringList{},
		FAQ:          []FAQItem{{Question: "Q1", Answer: "A1"}, {Question: "Q2", Answer: "A2"}},
	}
	if err := repo.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
	if post.ID == "" {
		t.Fatalf("expected id to be assigned")
	}

	stored, err := repo.GetByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if stored == nil {
		t.Fatalf("expected stored post")
	}

	if len(stored.Tags) != 3 || stored.Tags[1] != "with,comma" || stored.Tags[2] != `quote"d` {
		t.Fatalf("tags did not round trip: %#v", stored.Tags)
	}
	if len(stored.FAQ) != 2 || stored.FAQ[1].Answer != "A2" {
		t.Fatalf("faq did not round trip: %#v", stored.FAQ)
	}
	if stored.ProductPrice == nil || *stored.ProductPrice != price {
		t.Fatalf("expected product price %v, got %v", price, stored.ProductPrice)
	}
}

func TestRepositoryMissingRowsReturnNil(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()

	post, err := repo.GetByID(ctx, "missing")
	if err != nil || post != nil {
		t.Fatalf("expected nil, nil for missing id, got %v, %v", post, err)
	}

	post, err = repo.GetBySlug(ctx, "missing", false)
	if err != nil || post != nil {
		t.Fatalf("expected nil, nil for missing slug, got %v, %v", post, err)
	}

	settings, err := repo.GetSettings(ctx)
	if err != nil || settings != nil {
		t.Fatalf("expected nil settings before first write, got %v, %v", settings, err)
	}
}

func TestRepositoryRejectsDuplicateSlug(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()

	first := &Post{Slug: "테크-1", Title: "A", Content: "a", Category: "기타"}
	if err := repo.CreatePost(ctx, first); err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	second := &Post{Slug: "테크-1", Title: "B", Content: "b", Category: "기타"}
	err := repo.CreatePost(ctx, second)
	if !eris.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestRepositoryPublishedQueries(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []struct {
		slug      string
		title     string
		category  string
		published bool
		views     int
	}{
		{"a", "Alpha Phone", "모바일 기술", true, 5},
		{"b", "Beta Laptop", "하드웨어 리뷰", true, 50},
		{"c", "Gamma phone case", "모바일 기술", true, 1},
		{"d", "Draft phone", "모바일 기술", false, 99},
	}

	for i, item := range seed {
		post := &Post{Slug: item.slug, Title: item.title, Content: "x", Category: item.category, IsPublished: item.published, ViewCount: int64(item.views)}
		if item.published {
			at := base.Add(time.Duration(i) * time.Hour)
			post.PublishedAt = &at
		}
		if err := repo.CreatePost(ctx, post); err != nil {
			t.Fatalf("CreatePost returned error: %v", err)
		}
	}

	count, err := repo.CountPublished(ctx)
	if err != nil || count != 3 {
		t.Fatalf("expected 3 published posts, got %d (%v)", count, err)
	}

	page, err := repo.ListPublished(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListPublished returned error: %v", err)
	}
	if len(page) != 2 || page[0].Slug != "c" || page[1].Slug != "b" {
		t.Fatalf("expected newest first [c b], got %v", slugsOf(page))
	}

	related, err := repo.ListRelated(ctx, "a", "모바일 기술", 3)
	if err != nil {
		t.Fatalf("ListRelated returned error: %v", err)
	}
	if len(related) != 1 || related[0].Slug != "c" {
		t.Fatalf("expected only c as related, got %v", slugsOf(related))
	}

	popular, err := repo.ListPopular(ctx, 2)
	if err != nil {
		t.Fatalf("ListPopular returned error: %v", err)
	}
	if len(popular) != 2 || popular[0].Slug != "b" || popular[1].Slug != "a" {
		t.Fatalf("expected popular [b a], got %v", slugsOf(popular))
	}

	found, err := repo.SearchPublished(ctx, "PHONE", 20)
	if err != nil {
		t.Fatalf("SearchPublished returned error: %v", err)
	}
	if len(found) != 2 || found[0].Slug != "c" || found[1].Slug != "a" {
		t.Fatalf("expected search hits [c a], got %v", slugsOf(found))
	}

	none, err := repo.SearchPublished(ctx, "100%", 20)
	if err != nil {
		t.Fatalf("SearchPublished returned error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected literal percent not to match everything, got %v", slugsOf(none))
	}

	draft, err := repo.GetBySlug(ctx, "d", true)
	if err != nil || draft != nil {
		t.Fatalf("expected draft hidden from published lookup, got %v, %v", draft, err)
	}
}

func TestRepositoryIncrementViewCount(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()

	post := &Post{Slug: "v", Title: "V", Content: "v", Category: "기타"}
	if err := repo.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := repo.IncrementViewCount(ctx, post.ID); err != nil {
			t.Fatalf("IncrementViewCount returned error: %v", err)
		}
	}

	stored, err := repo.GetByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if stored.ViewCount != 3 {
		t.Fatalf("expected 3 views, got %d", stored.ViewCount)
	}
}

func TestRepositorySaveSettingsUpserts(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	ctx := context.Background()

	if err := repo.SaveSettings(ctx, &Settings{Categories: StringList{"A"}, SiteName: "one"}); err != nil {
		t.Fatalf("SaveSettings returned error: %v", err)
	}
	if err := repo.SaveSettings(ctx, &Settings{Categories: StringList{"B", "C"}, SiteName: "two"}); err != nil {
		t.Fatalf("SaveSettings returned error: %v", err)
	}

	stored, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings returned error: %v", err)
	}
	if stored.ID != SettingsID || stored.SiteName != "two" || len(stored.Categories) != 2 {
		t.Fatalf("unexpected settings: %+v", stored)
	}
}

func slugsOf(posts []Post) []string {
	out := make([]string, 0, len(posts))
	for _, post := range posts {
		out = append(out, post.Slug)
	}
	return out
}
