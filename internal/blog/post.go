package blog

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// FAQItem is a single question and answer pair rendered under a post.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// StringList stores tags and keywords as a Postgres text[] column, falling back
// to the array literal encoding in a text column on other dialects.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return pq.StringArray{}.Value()
	}
	return pq.StringArray(l).Value()
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*l = StringList(arr)
	return nil
}

// GormDBDataType picks the column type per dialect.
func (StringList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Post is a blog article.
type Post struct {
	ID               string                       `gorm:"primaryKey;size:36" json:"id"`
	Slug             string                       `gorm:"size:255;uniqueIndex:idx_posts_slug;not null" json:"slug"`
	Title            string                       `gorm:"not null" json:"title"`
	Description      *string                      `json:"description"`
	Content          string                       `gorm:"type:text;not null" json:"content"`
	FeaturedImage    *string                      `json:"featured_image"`
	CoupangURL       *string                      `json:"coupang_url"`
	CoupangProductID *string                      `json:"coupang_product_id"`
	ProductName      *string                      `json:"product_name"`
	ProductPrice     *float64                     `json:"product_price"`
	Category         string                       `gorm:"size:255;index;not null" json:"category"`
	Tags             StringList                   `json:"tags"`
	SEOKeywords      StringList                   `gorm:"column:seo_keywords" json:"seo_keywords"`
	FAQ              datatypes.JSONSlice[FAQItem] `gorm:"column:faq" json:"faq"`
	ViewCount        int64                        `gorm:"not null;default:0" json:"view_count"`
	WordCount        *int                         `json:"word_count"`
	IsPublished      bool                         `gorm:"index;not null;default:false" json:"is_published"`
	PublishedAt      *time.Time                   `gorm:"index" json:"published_at"`
	CreatedAt        time.Time                    `json:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at"`
}

// TableName defines the table name for the Post model.
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns a UUID when the caller left ID empty.
func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// DescriptionText returns the description or an empty string.
func (p Post) DescriptionText() string {
	return deref(p.Description)
}

// ProductLabel is the product name, or the title when no product is attached.
func (p Post) ProductLabel() string {
	if name := deref(p.ProductName); name != "" {
		return name
	}
	return p.Title
}

// Settings is the singleton row holding site-wide configuration.
type Settings struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Categories      StringList `json:"categories"`
	SiteName        string     `gorm:"not null" json:"site_name"`
	SiteDescription string     `json:"site_description"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName defines the table name for the Settings model.
func (Settings) TableName() string {
	return "settings"
}

// SettingsID is the primary key of the single settings row.
const SettingsID = 1

// DefaultCategory receives posts whose category is blank.
const DefaultCategory = "기타"

// DefaultSettings is returned while no settings row exists.
func DefaultSettings() Settings {
	return Settings{
		ID: SettingsID,
		Categories: StringList{
			"인공지능과 머신러닝",
			"모바일 기술",
			"인터넷 보안",
			"클라우드 컴퓨팅",
			"하드웨어 리뷰",
			"소프트웨어 개발",
			"가상현실과 증강현실",
			"스타트업과 혁신",
			DefaultCategory,
		},
		SiteName:        "테크매니아",
		SiteDescription: "최신 테크 트렌드와 리뷰",
	}
}

// initialSettings seeds the row on first write for any field the write omits.
func initialSettings() Settings {
	return Settings{
		ID:         SettingsID,
		Categories: StringList{DefaultCategory},
		SiteName:   "블로그",
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
