package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
)

func openMemIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := Open("", nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func samplePosts() []blog.Post {
	product := "Galaxy S24"
	description := "삼성 플래그십 스마트폰"
	return []blog.Post{
		{ID: "p1", Title: "아이폰 16 리뷰", Category: "모바일 기술", Tags: blog.StringList{"애플"}},
		{ID: "p2", Title: "갤럭시 후기", Description: &description, ProductName: &product, Category: "모바일 기술"},
		{ID: "p3", Title: "클라우드 입문", Category: "클라우드 컴퓨팅", Tags: blog.StringList{"AWS"}},
	}
}

func TestIndexSearchRanksAndMatchesPrefixes(t *testing.T) {
	t.Parallel()

	idx := openMemIndex(t)
	ctx := context.Background()

	posts := samplePosts()
	for i := range posts {
		if err := idx.IndexPost(ctx, &posts[i]); err != nil {
			t.Fatalf("IndexPost returned error: %v", err)
		}
	}

	ids, err := idx.Search(ctx, "아이폰", 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "p1" {
		t.Fatalf("expected p1, got %v", ids)
	}

	ids, err = idx.Search(ctx, "galaxy", 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "p2" {
		t.Fatalf("expected product name match p2, got %v", ids)
	}

	ids, err = idx.Search(ctx, "스마트", 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "p2" {
		t.Fatalf("expected prefix match on description, got %v", ids)
	}

	ids, err = idx.Search(ctx, "  ", 10)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no hits for blank query, got %v, %v", ids, err)
	}
}

func TestIndexRemoveAndRebuild(t *testing.T) {
	t.Parallel()

	idx := openMemIndex(t)
	ctx := context.Background()
	posts := samplePosts()

	if err := idx.Rebuild(ctx, posts); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}
	if count, _ := idx.Count(); count != 3 {
		t.Fatalf("expected 3 documents, got %d", count)
	}

	if err := idx.RemovePost(ctx, "p3"); err != nil {
		t.Fatalf("RemovePost returned error: %v", err)
	}
	if ids, _ := idx.Search(ctx, "aws", 10); len(ids) != 0 {
		t.Fatalf("expected removed post to disappear, got %v", ids)
	}

	if err := idx.Rebuild(ctx, posts[:1]); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}
	if count, _ := idx.Count(); count != 1 {
		t.Fatalf("expected rebuild to drop stale documents, got %d", count)
	}
}

func TestOpenPersistentIndex(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "posts.bleve")
	ctx := context.Background()

	idx, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	posts := samplePosts()
	if err := idx.IndexPost(ctx, &posts[0]); err != nil {
		t.Fatalf("IndexPost returned error: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopening index returned error: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	if count, _ := reopened.Count(); count != 1 {
		t.Fatalf("expected persisted document, got %d", count)
	}
}
