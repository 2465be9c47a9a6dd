package templates

// Site carries the per-request site settings shared by every page.
type Site struct {
	Name        string
	Description string
	URL         string
	Categories  []string
	IsAdmin     bool
}

// Meta holds head values for a page.
type Meta struct {
	Title       string
	Description string
	Canonical   string
	Image       string
	Type        string
	Keywords    string
	NoIndex     bool
	JSONLD      []string
}

// PostView is a post prepared for display.
type PostView struct {
	ID          string
	Title       string
	Slug        string
	URL         string
	Description string
	Category    string
	CategoryURL string
	Image       string
	Date        string
	Price       string
	ProductName string
	CoupangURL  string
	Tags        []string
	Views       int64
	WordCount   int
	Content     string
	FAQ         []FAQView
}

// FAQView is one question and answer pair.
type FAQView struct {
	Question string
	Answer   string
}

// PageLink is one entry of the page control; Ellipsis entries have no URL.
type PageLink struct {
	Label    string
	URL      string
	Current  bool
	Ellipsis bool
}

// Pagination is the page control under a listing.
type Pagination struct {
	Links   []PageLink
	PrevURL string
	NextURL string
}

// CountView is a label with a post count.
type CountView struct {
	Name  string
	URL   string
	Count int
}

// HomePageData contains the values rendered on the landing page.
type HomePageData struct {
	Site       Site
	Meta       Meta
	Posts      []PostView
	Popular    []PostView
	Categories []CountView
	Pagination Pagination
	Total      int64
}

// PostPageData holds a single article.
type PostPageData struct {
	Site    Site
	Meta    Meta
	Post    PostView
	Related []PostView
}

// CategoryPageData lists the posts of one category.
type CategoryPageData struct {
	Site     Site
	Meta     Meta
	Category string
	Posts    []PostView
}

// CategoriesPageData lists categories and tags with counts.
type CategoriesPageData struct {
	Site       Site
	Meta       Meta
	Categories []CountView
	Tags       []CountView
}

// SearchPageData bundles template data for the search results page.
type SearchPageData struct {
	Site    Site
	Meta    Meta
	Query   string
	Results []PostView
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	Site        Site
	Meta        Meta
	StatusLabel string
	Message     string
}

// AdminLoginData renders the login form.
type AdminLoginData struct {
	Site    Site
	Meta    Meta
	Failed  bool
	Message string
}

// AdminPostRow is one line of the dashboard post table.
type AdminPostRow struct {
	ID        string
	Title     string
	Slug      string
	Category  string
	Published bool
	Date      string
	Views     int64
}

// PostForm holds the editor field values.
type PostForm struct {
	ID               string
	Title            string
	Slug             string
	Description      string
	Content          string
	FeaturedImage    string
	Category         string
	Tags             string
	SEOKeywords      string
	FAQ              string
	CoupangURL       string
	CoupangProductID string
	ProductName      string
	ProductPrice     string
	IsPublished      bool
}

// AdminPageData renders the dashboard.
type AdminPageData struct {
	Site             Site
	Meta             Meta
	Message          string
	Posts            []AdminPostRow
	Form             PostForm
	CanonicalSlug    string
	GeneratorEnabled bool
	SettingsName     string
	SettingsDesc     string
	SettingsCats     string
}
