package blog

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mangorocketofficial/tech-blog/internal/db"
	"github.com/mangorocketofficial/tech-blog/internal/llm"
)

func setupRepository(t *testing.T) *GormRepository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "blog.db")
	gormDB, err := db.Open(db.Options{Path: path})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(gormDB); err != nil {
			t.Errorf("closing database failed: %v", err)
		}
	})

	logger := silentLogger()
	if err := Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	repo, err := NewRepository(gormDB, logger)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}
	return repo
}

func setupService(t *testing.T, generator llm.Generator, index SearchIndex) (*Service, *GormRepository) {
	t.Helper()

	repo := setupRepository(t)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}

	service, err := NewService(ServiceOptions{
		Repository: repo,
		Generator:  generator,
		Search:     index,
		Logger:     silentLogger(),
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return service, repo
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func listPtr(values ...string) *[]string { return &values }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type stubGenerator struct {
	post  *llm.InfoPost
	err   error
	calls int
}

var _ llm.Generator = (*stubGenerator)(nil)

func (s *stubGenerator) Generate(ctx context.Context, topic string) (*llm.InfoPost, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	copyPost := *s.post
	return &copyPost, nil
}

type stubIndex struct {
	mu      sync.Mutex
	indexed map[string]string
	results []string
	err     error
}

var _ SearchIndex = (*stubIndex)(nil)

func newStubIndex() *stubIndex {
	return &stubIndex{indexed: map[string]string{}}
}

func (s *stubIndex) IndexPost(ctx context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed[post.ID] = post.Title
	return nil
}

func (s *stubIndex) RemovePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexed, id)
	return nil
}

func (s *stubIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	return s.results, s.err
}

func (s *stubIndex) Rebuild(ctx context.Context, posts []Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = map[string]string{}
	for _, post := range posts {
		s.indexed[post.ID] = post.Title
	}
	return nil
}
