package blog

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines persistence operations for posts and site settings.
// Lookups return nil, nil when the row does not exist.
type Repository interface {
	CreatePost(ctx context.Context, post *Post) error
	SavePost(ctx context.Context, post *Post) error
	DeletePost(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*Post, error)
	GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*Post, error)
	SlugExists(ctx context.Context, slug string, excludeID string) (bool, error)
	ListAll(ctx context.Context) ([]Post, error)
	ListSlugs(ctx context.Context) ([]string, error)
	ListPublished(ctx context.Context, offset, limit int) ([]Post, error)
	CountPublished(ctx context.Context) (int64, error)
	ListPublishedByCategory(ctx context.Context, category string) ([]Post, error)
	ListPublishedByIDs(ctx context.Context, ids []string) ([]Post, error)
	ListRelated(ctx context.Context, slug, category string, limit int) ([]Post, error)
	ListPopular(ctx context.Context, limit int) ([]Post, error)
	SearchPublished(ctx context.Context, query string, limit int) ([]Post, error)
	ListFacets(ctx context.Context) ([]Facet, error)
	ListSitemapEntries(ctx context.Context) ([]SitemapEntry, error)
	IncrementViewCount(ctx context.Context, id string) error
	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, settings *Settings) error
}

// Facet carries the grouping columns of a published post.
type Facet struct {
	Category string
	Tags     StringList
}

// SitemapEntry is the minimal data needed to list a post in the sitemap.
type SitemapEntry struct {
	Slug      string
	UpdatedAt time.Time
}

// GormRepository persists posts using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

func (r *GormRepository) published(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&Post{}).Where("is_published = ?", true)
}

// CreatePost inserts a new post. A unique index violation on slug is reported as ErrSlugTaken.
func (r *GormRepository) CreatePost(ctx context.Context, post *Post) error {
	if post == nil {
		return eris.New("post is nil")
	}

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrSlugTaken, "creating post: %s", post.Slug)
		}
		r.logError(logrus.Fields{"slug": post.Slug}, err, "creating post")
		return eris.Wrapf(err, "creating post: %s", post.Slug)
	}

	return nil
}

// SavePost writes every column of an existing post.
func (r *GormRepository) SavePost(ctx context.Context, post *Post) error {
	if post == nil || post.ID == "" {
		return eris.New("post id is required")
	}

	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrSlugTaken, "saving post: %s", post.Slug)
		}
		r.logError(logrus.Fields{"post_id": post.ID}, err, "saving post")
		return eris.Wrapf(err, "saving post: %s", post.ID)
	}

	return nil
}

// DeletePost removes the post and reports whether a row was deleted.
func (r *GormRepository) DeletePost(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&Post{}, "id = ?", id)
	if result.Error != nil {
		r.logError(logrus.Fields{"post_id": id}, result.Error, "deleting post")
		return false, eris.Wrapf(result.Error, "deleting post: %s", id)
	}

	return result.RowsAffected > 0, nil
}

// GetByID returns the post with the given id or nil when not found.
func (r *GormRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	var post Post
	err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"post_id": id}, err, "fetching post by id")
		return nil, eris.Wrapf(err, "fetching post by id: %s", id)
	}

	return &post, nil
}

// GetBySlug returns the post for the slug or nil when not found.
func (r *GormRepository) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*Post, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return nil, eris.New("slug is required")
	}

	query := r.db.WithContext(ctx).Where("slug = ?", trimmed)
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}

	var post Post
	if err := query.First(&post).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"slug": trimmed}, err, "fetching post by slug")
		return nil, eris.Wrapf(err, "fetching post by slug: %s", trimmed)
	}

	return &post, nil
}

// SlugExists reports whether a post other than excludeID uses the slug.
func (r *GormRepository) SlugExists(ctx context.Context, slug string, excludeID string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&Post{}).Where("slug = ?", slug)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		r.logError(logrus.Fields{"slug": slug}, err, "checking slug")
		return false, eris.Wrapf(err, "checking slug: %s", slug)
	}

	return count > 0, nil
}

// ListAll returns every post, drafts included, newest first.
func (r *GormRepository) ListAll(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&posts).Error; err != nil {
		r.logError(nil, err, "listing posts")
		return nil, eris.Wrap(err, "listing posts")
	}

	return posts, nil
}

// ListSlugs returns the slug of every post.
func (r *GormRepository) ListSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	if err := r.db.WithContext(ctx).Model(&Post{}).Pluck("slug", &slugs).Error; err != nil {
		r.logError(nil, err, "listing slugs")
		return nil, eris.Wrap(err, "listing slugs")
	}

	return slugs, nil
}

// ListPublished returns a window of published posts, most recently published first.
// A non-positive limit returns every remaining row.
func (r *GormRepository) ListPublished(ctx context.Context, offset, limit int) ([]Post, error) {
	query := r.published(ctx).Order("published_at DESC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var posts []Post
	if err := query.Find(&posts).Error; err != nil {
		r.logError(logrus.Fields{"offset": offset, "limit": limit}, err, "listing published posts")
		return nil, eris.Wrap(err, "listing published posts")
	}

	return posts, nil
}

// CountPublished returns the number of published posts.
func (r *GormRepository) CountPublished(ctx context.Context) (int64, error) {
	var count int64
	if err := r.published(ctx).Count(&count).Error; err != nil {
		r.logError(nil, err, "counting published posts")
		return 0, eris.Wrap(err, "counting published posts")
	}

	return count, nil
}

// ListPublishedByCategory returns the category's published posts, newest first.
func (r *GormRepository) ListPublishedByCategory(ctx context.Context, category string) ([]Post, error) {
	var posts []Post
	err := r.published(ctx).
		Where("category = ?", category).
		Order("published_at DESC").
		Find(&posts).Error
	if err != nil {
		r.logError(logrus.Fields{"category": category}, err, "listing posts by category")
		return nil, eris.Wrapf(err, "listing posts by category: %s", category)
	}

	return posts, nil
}

// ListPublishedByIDs loads published posts, keeping the order of ids.
func (r *GormRepository) ListPublishedByIDs(ctx context.Context, ids []string) ([]Post, error) {
	if len(ids) == 0 {
		return []Post{}, nil
	}

	var found []Post
	if err := r.published(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		r.logError(nil, err, "listing posts by id")
		return nil, eris.Wrap(err, "listing posts by id")
	}

	byID := make(map[string]Post, len(found))
	for _, post := range found {
		byID[post.ID] = post
	}

	ordered := make([]Post, 0, len(found))
	for _, id := range ids {
		if post, ok := byID[id]; ok {
			ordered = append(ordered, post)
		}
	}

	return ordered, nil
}

// ListRelated returns published posts in the same category, excluding slug.
func (r *GormRepository) ListRelated(ctx context.Context, slug, category string, limit int) ([]Post, error) {
	var posts []Post
	err := r.published(ctx).
		Where("category = ? AND slug <> ?", category, slug).
		Order("published_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		r.logError(logrus.Fields{"slug": slug, "category": category}, err, "listing related posts")
		return nil, eris.Wrapf(err, "listing related posts: %s", slug)
	}

	return posts, nil
}

// ListPopular returns the most viewed published posts.
func (r *GormRepository) ListPopular(ctx context.Context, limit int) ([]Post, error) {
	var posts []Post
	err := r.published(ctx).
		Order("view_count DESC").
		Order("published_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		r.logError(nil, err, "listing popular posts")
		return nil, eris.Wrap(err, "listing popular posts")
	}

	return posts, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchPublished matches the query case-insensitively against title,
// description and product name.
func (r *GormRepository) SearchPublished(ctx context.Context, query string, limit int) ([]Post, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"

	var posts []Post
	err := r.published(ctx).
		Where(
			r.db.Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).
				Or(`LOWER(description) LIKE ? ESCAPE '\'`, pattern).
				Or(`LOWER(product_name) LIKE ? ESCAPE '\'`, pattern),
		).
		Order("published_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		r.logError(logrus.Fields{"query": query}, err, "searching posts")
		return nil, eris.Wrapf(err, "searching posts: %s", query)
	}

	return posts, nil
}

// ListFacets returns the category and tags of every published post.
func (r *GormRepository) ListFacets(ctx context.Context) ([]Facet, error) {
	var facets []Facet
	if err := r.published(ctx).Select("category", "tags").Find(&facets).Error; err != nil {
		r.logError(nil, err, "listing facets")
		return nil, eris.Wrap(err, "listing facets")
	}

	return facets, nil
}

// ListSitemapEntries returns slug and modification time of every published post.
func (r *GormRepository) ListSitemapEntries(ctx context.Context) ([]SitemapEntry, error) {
	var entries []SitemapEntry
	err := r.published(ctx).
		Select("slug", "updated_at").
		Order("updated_at DESC").
		Find(&entries).Error
	if err != nil {
		r.logError(nil, err, "listing sitemap entries")
		return nil, eris.Wrap(err, "listing sitemap entries")
	}

	return entries, nil
}

// IncrementViewCount adds one to the post's view counter without touching updated_at.
func (r *GormRepository) IncrementViewCount(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).
		Model(&Post{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
	if err != nil {
		r.logError(logrus.Fields{"post_id": id}, err, "incrementing view count")
		return eris.Wrapf(err, "incrementing view count: %s", id)
	}

	return nil
}

// GetSettings returns the settings row or nil when it has not been written yet.
func (r *GormRepository) GetSettings(ctx context.Context) (*Settings, error) {
	var settings Settings
	if err := r.db.WithContext(ctx).First(&settings, SettingsID).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(nil, err, "fetching settings")
		return nil, eris.Wrap(err, "fetching settings")
	}

	return &settings, nil
}

// SaveSettings upserts the settings row.
func (r *GormRepository) SaveSettings(ctx context.Context, settings *Settings) error {
	if settings == nil {
		return eris.New("settings is nil")
	}
	settings.ID = SettingsID

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"categories", "site_name", "site_description", "updated_at"}),
		}).
		Create(settings).Error
	if err != nil {
		r.logError(nil, err, "saving settings")
		return eris.Wrap(err, "saving settings")
	}

	return nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
