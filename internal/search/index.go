package search

import (
	"context"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
)

const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldProductName = "product_name"
	fieldCategory    = "category"
	fieldTags        = "tags"
)

// boosts weights matches per field; title hits rank first.
var boosts = map[string]float64{
	fieldTitle:       3,
	fieldProductName: 2,
	fieldDescription: 1,
	fieldTags:        1,
	fieldCategory:    0.5,
}

// Index is a bleve full-text index over published posts.
type Index struct {
	mu     sync.Mutex
	index  bleve.Index
	logger *logrus.Logger
}

var _ blog.SearchIndex = (*Index)(nil)

// Open opens the index at path, creating it when missing. An empty path
// builds an in-memory index that must be filled with Rebuild.
func Open(path string, logger *logrus.Logger) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, eris.Wrap(err, "creating in-memory search index")
		}
		return &Index{index: idx, logger: logger}, nil
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, eris.Wrapf(err, "creating search index at %s", path)
		}
	} else if err != nil {
		return nil, eris.Wrapf(err, "opening search index at %s", path)
	}

	return &Index{index: idx, logger: logger}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()
	for _, field := range []string{fieldTitle, fieldDescription, fieldProductName, fieldCategory, fieldTags} {
		docMapping.AddFieldMappingsAt(field, bleve.NewTextFieldMapping())
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}

// Count returns the number of indexed posts.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// IndexPost adds or replaces a post.
func (i *Index) IndexPost(_ context.Context, post *blog.Post) error {
	if post == nil || post.ID == "" {
		return eris.New("post with id is required")
	}
	if err := i.index.Index(post.ID, document(post)); err != nil {
		return eris.Wrapf(err, "indexing post %s", post.ID)
	}
	return nil
}

// RemovePost deletes a post; unknown ids are ignored.
func (i *Index) RemovePost(_ context.Context, id string) error {
	if err := i.index.Delete(id); err != nil {
		return eris.Wrapf(err, "removing post %s", id)
	}
	return nil
}

// Search returns post ids ordered by relevance.
func (i *Index) Search(ctx context.Context, text string, limit int) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}, nil
	}

	request := bleve.NewSearchRequestOptions(buildQuery(text), limit, 0, false)
	result, err := i.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, eris.Wrap(err, "searching index")
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}

	if i.logger != nil {
		i.logger.WithFields(logrus.Fields{"query": text, "hits": len(ids), "took": result.Took.String()}).Debug("search executed")
	}
	return ids, nil
}

// Rebuild replaces the index contents with posts.
func (i *Index) Rebuild(ctx context.Context, posts []blog.Post) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	count, err := i.index.DocCount()
	if err != nil {
		return eris.Wrap(err, "counting indexed posts")
	}

	batch := i.index.NewBatch()
	if count > 0 {
		existing, err := i.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false))
		if err != nil {
			return eris.Wrap(err, "listing indexed posts")
		}
		for _, hit := range existing.Hits {
			batch.Delete(hit.ID)
		}
	}

	for idx := range posts {
		post := &posts[idx]
		if err := batch.Index(post.ID, document(post)); err != nil {
			return eris.Wrapf(err, "batch index %s", post.ID)
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return eris.Wrap(err, "committing index batch")
	}
	return nil
}

func document(post *blog.Post) map[string]any {
	return map[string]any{
		fieldTitle:       post.Title,
		fieldDescription: post.DescriptionText(),
		fieldProductName: derefString(post.ProductName),
		fieldCategory:    post.Category,
		fieldTags:        []string(post.Tags),
	}
}

// buildQuery matches the analysed text on every field and additionally
// treats each word as a prefix, so partial Korean words still hit.
func buildQuery(text string) query.Query {
	var clauses []query.Query
	for field, boost := range boosts {
		match := bleve.NewMatchQuery(text)
		match.SetField(field)
		match.SetBoost(boost)
		clauses = append(clauses, match)

		for _, term := range strings.Fields(strings.ToLower(text)) {
			prefix := bleve.NewPrefixQuery(term)
			prefix.SetField(field)
			prefix.SetBoost(boost / 2)
			clauses = append(clauses, prefix)
		}
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
