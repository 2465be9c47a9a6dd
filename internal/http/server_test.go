package http

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
	"github.com/mangorocketofficial/tech-blog/internal/db"
	"github.com/mangorocketofficial/tech-blog/internal/llm"
	"github.com/mangorocketofficial/tech-blog/internal/search"
	"github.com/mangorocketofficial/tech-blog/internal/storage"
)

const (
	testAdminKey      = "admin-key"
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "hunter2"
	testSiteURL       = "https://blog.example.com"
)

func TestHomeRouteRendersPublishedPosts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.createPost(t, "tech-1", "공개된 글", true)
	env.createPost(t, "tech-2", "초안 글", false)

	rec := env.do(t, "GET", "/", nil, nil)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != htmlContentType {
		t.Fatalf("expected content type %q, got %q", htmlContentType, ct)
	}

	body := rec.Body.String()
	if !contains(body, "공개된 글") {
		t.Fatalf("expected published post in body, got %q", body)
	}
	if contains(body, "초안 글") {
		t.Fatalf("expected drafts to be hidden from the listing")
	}
	if !contains(body, `"@type":"WebSite"`) {
		t.Fatalf("expected website JSON-LD in head, got %q", body)
	}
}

func TestHomeRouteClampsInvalidPage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.createPost(t, "tech-1", "첫 글", true)

	rec := env.do(t, "GET", "/?page=abc", nil, nil)
	if rec.Code != 200 || !contains(rec.Body.String(), "첫 글") {
		t.Fatalf("expected first page for invalid page parameter, got %d", rec.Code)
	}
}

func TestUnknownPathRendersNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/does/not/exist", nil, nil)

	if rec.Code != 404 {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != htmlContentType {
		t.Fatalf("expected content type %q, got %q", htmlContentType, ct)
	}
}

func TestPostRouteRendersArticle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.createPost(t, "테크-3", "갤럭시 리뷰", true)

	rec := env.do(t, "GET", "/posts/%ED%85%8C%ED%81%AC-3", nil, nil)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !contains(body, "<p>본문 내용</p>") {
		t.Fatalf("expected raw post content, got %q", body)
	}
	if !contains(body, `<script type="application/ld+json">{"@context"`) {
		t.Fatalf("expected unescaped JSON-LD block, got %q", body)
	}
	if !contains(body, `rel="canonical" href="https://blog.example.com/posts/`) {
		t.Fatalf("expected canonical link, got %q", body)
	}

	post, err := env.blog.GetPost(context.Background(), env.idOf(t, "테크-3"))
	if err != nil {
		t.Fatalf("GetPost returned error: %v", err)
	}
	if post.ViewCount != 1 {
		t.Fatalf("expected view to be counted, got %d", post.ViewCount)
	}
}

func TestPostRouteHidesDrafts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.createPost(t, "tech-9", "비공개", false)

	rec := env.do(t, "GET", "/posts/tech-9", nil, nil)
	if rec.Code != 404 {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestCategoryAndSearchRoutes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.createPost(t, "tech-1", "아이폰 카메라", true)

	rec := env.do(t, "GET", "/category/%EB%AA%A8%EB%B0%94%EC%9D%BC%20%EA%B8%B0%EC%88%A0", nil, nil)
	if rec.Code != 200 || !contains(rec.Body.String(), "아이폰 카메라") {
		t.Fatalf("expected category listing with post, got %d %q", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "GET", "/search?q=%EC%95%84%EC%9D%B4%ED%8F%B0", nil, nil)
	if rec.Code != 200 || !contains(rec.Body.String(), "/posts/tech-1") {
		t.Fatalf("expected search result link, got %d %q", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "GET", "/categories", nil, nil)
	if rec.Code != 200 || !contains(rec.Body.String(), "모바일 기술 (1)") {
		t.Fatalf("expected category counts, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAPIRequiresAdmin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/posts", nil, nil)
	if rec.Code != 401 {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if got := decodeJSON(t, rec)["error"]; got != "Unauthorized" {
		t.Fatalf("expected error envelope, got %v", got)
	}

	rec = env.do(t, "GET", "/api/posts", nil, map[string]string{adminKeyHeader: "wrong"})
	if rec.Code != 401 {
		t.Fatalf("expected wrong key to be rejected, got %d", rec.Code)
	}
}

func TestAPICreateAndConflict(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	payload := `{"title":"새 글","slug":"tech-1","content":"<p>a b c</p>","category":"모바일 기술","is_published":true,"tags":["x"," "]}`

	rec := env.do(t, "POST", "/api/posts", strings.NewReader(payload), adminHeaders())
	if rec.Code != 201 {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	post := decodeJSON(t, rec)["post"].(map[string]any)
	if post["slug"] != "tech-1" || post["word_count"] != float64(3) {
		t.Fatalf("unexpected created post: %v", post)
	}
	if tags := post["tags"].([]any); len(tags) != 1 {
		t.Fatalf("expected blank tags dropped, got %v", tags)
	}

	rec = env.do(t, "POST", "/api/posts", strings.NewReader(payload), adminHeaders())
	if rec.Code != 409 {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
	if got := decodeJSON(t, rec)["error"]; got != blog.ErrSlugTaken.Error() {
		t.Fatalf("unexpected conflict message %v", got)
	}
}

func TestAPICreateValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/posts", strings.NewReader(`{"title":"제목만"}`), adminHeaders())
	if rec.Code != 400 {
		t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeJSON(t, rec)["error"].(string); !contains(got, "missing required fields") {
		t.Fatalf("unexpected validation message %q", got)
	}
}

func TestAPIUpdatePatchDelete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.createPost(t, "tech-1", "원래 제목", false)
	id := env.idOf(t, "tech-1")

	rec := env.do(t, "PUT", "/api/posts", strings.NewReader(`{"title":"x"}`), adminHeaders())
	if rec.Code != 400 || decodeJSON(t, rec)["error"] != "Post ID is required" {
		t.Fatalf("expected missing id error, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "PUT", "/api/posts", strings.NewReader(`{"id":"`+id+`","title":"바뀐 제목"}`), adminHeaders())
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "PATCH", "/api/posts/"+id, strings.NewReader(`{"slug":"ignored"}`), adminHeaders())
	if rec.Code != 400 || decodeJSON(t, rec)["error"] != "No valid fields to update" {
		t.Fatalf("expected no fields error, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "PATCH", "/api/posts/"+id, strings.NewReader(`{"is_published":true}`), adminHeaders())
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["message"] != postUpdatedMessage {
		t.Fatalf("unexpected patch message %v", body["message"])
	}
	post := body["post"].(map[string]any)
	if post["title"] != "바뀐 제목" || post["published_at"] == nil {
		t.Fatalf("unexpected patched post %v", post)
	}

	rec = env.do(t, "DELETE", "/api/posts?id="+id, nil, adminHeaders())
	if rec.Code != 200 || decodeJSON(t, rec)["success"] != true {
		t.Fatalf("expected delete success, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "GET", "/api/posts/"+id, nil, adminHeaders())
	if rec.Code != 404 {
		t.Fatalf("expected deleted post to be gone, got %d", rec.Code)
	}
}

func TestAPIUpdateClearsNullFields(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, "POST", "/api/posts", strings.NewReader(`{"title":"가격 있는 글","slug":"tech-5","content":"<p>본문</p>","category":"모바일 기술",`+
		`"description":"desc","featured_image":"https://x/img.png","product_name":"p","product_price":12000}`), adminHeaders())
	if rec.Code != 201 {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	id := env.idOf(t, "tech-5")

	rec = env.do(t, "PUT", "/api/posts", strings.NewReader(`{"id":"`+id+`","description":null,"featured_image":null,"product_name":null,"product_price":null}`), adminHeaders())
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	post := decodeJSON(t, rec)["post"].(map[string]any)
	for _, key := range []string{"description", "featured_image", "product_name", "product_price"} {
		if post[key] != nil {
			t.Fatalf("expected %s cleared, got %v", key, post[key])
		}
	}
	if post["title"] != "가격 있는 글" {
		t.Fatalf("expected title untouched, got %v", post["title"])
	}

	rec = env.do(t, "PUT", "/api/posts", strings.NewReader(`{"id":"`+id+`","title":"새 제목"}`), adminHeaders())
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored, err := env.blog.GetPost(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPost returned error: %v", err)
	}
	if stored.Title != "새 제목" || stored.Description != nil {
		t.Fatalf("unexpected stored post %+v", stored)
	}
}

func TestAPIPatchClearsDescription(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	description := "요약"
	env.createPost(t, "tech-1", "원래 제목", false)
	id := env.idOf(t, "tech-1")
	if _, err := env.blog.UpdatePost(context.Background(), id, blog.PostInput{Description: &description}); err != nil {
		t.Fatalf("UpdatePost returned error: %v", err)
	}

	rec := env.do(t, "PATCH", "/api/posts/"+id, strings.NewReader(`{"description":null}`), adminHeaders())
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if post := decodeJSON(t, rec)["post"].(map[string]any); post["description"] != nil {
		t.Fatalf("expected description cleared, got %v", post["description"])
	}
}

func TestAPIGetPostHidesDraftsFromPublic(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.createPost(t, "tech-1", "초안", false)
	id := env.idOf(t, "tech-1")

	if rec := env.do(t, "GET", "/api/posts/"+id, nil, nil); rec.Code != 404 {
		t.Fatalf("expected 404 for anonymous draft read, got %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/posts/"+id, nil, adminHeaders()); rec.Code != 200 {
		t.Fatalf("expected admin to read drafts, got %d", rec.Code)
	}
}

func TestAPINextSlug(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.createPost(t, "tech-3", "a", false)
	env.createPost(t, "테크-7", "b", true)

	rec := env.do(t, "GET", "/api/posts/next-slug", nil, adminHeaders())
	body := decodeJSON(t, rec)
	if body["slug"] != "tech-4" || body["canonical"] != "테크-8" {
		t.Fatalf("unexpected next slugs %v", body)
	}
}

func TestAPIGenerateInfoPost(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, "POST", "/api/generate-info-post", strings.NewReader(`{"topic":"서브"}`), adminHeaders())
	if rec.Code != 503 {
		t.Fatalf("expected 503 without generator, got %d", rec.Code)
	}

	env = newTestEnv(t, &stubGenerator{post: &llm.InfoPost{Content: "<h2>서브</h2>\n<p>회전</p>"}})

	rec = env.do(t, "POST", "/api/generate-info-post", strings.NewReader(`{"topic":"  "}`), adminHeaders())
	if rec.Code != 400 || decodeJSON(t, rec)["error"] != "Topic is required" {
		t.Fatalf("expected topic error, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "POST", "/api/generate-info-post", strings.NewReader(`{"topic":"서브"}`), adminHeaders())
	if rec.Code != 201 {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	post := body["post"].(map[string]any)
	if post["slug"] != "테크-1" || post["is_published"] != true || body["message"] != infoPostMessage {
		t.Fatalf("unexpected generated post %v", body)
	}
}

func TestAPISettings(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/settings", nil, nil)
	settings := decodeJSON(t, rec)["settings"].(map[string]any)
	if settings["site_name"] != "테크매니아" {
		t.Fatalf("expected default settings, got %v", settings)
	}

	rec = env.do(t, "PUT", "/api/settings", strings.NewReader(`{"site_name":"새 이름"}`), nil)
	if rec.Code != 401 {
		t.Fatalf("expected anonymous settings update to be rejected, got %d", rec.Code)
	}

	rec = env.do(t, "PUT", "/api/settings", strings.NewReader(`{"site_name":"새 이름","categories":["a","a","b"]}`), adminHeaders())
	body := decodeJSON(t, rec)
	if rec.Code != 200 || body["message"] != settingsSavedMessage {
		t.Fatalf("unexpected settings update %d %v", rec.Code, body)
	}
	if cats := body["settings"].(map[string]any)["categories"].([]any); len(cats) != 2 {
		t.Fatalf("expected deduplicated categories, got %v", cats)
	}
}

func TestLoginSessionFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/auth/login", strings.NewReader(`{"email":"admin@example.com","password":"nope"}`), nil)
	if rec.Code != 401 || decodeJSON(t, rec)["error"] != invalidCredentialsMessage {
		t.Fatalf("expected invalid credentials, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "POST", "/api/auth/login", strings.NewReader(`{"email":"admin@example.com","password":"hunter2"}`), nil)
	if rec.Code != 200 {
		t.Fatalf("expected login success, got %d %s", rec.Code, rec.Body.String())
	}

	var session *stdhttp.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionName {
			session = cookie
		}
	}
	if session == nil || !session.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %v", rec.Result().Cookies())
	}

	req := httptest.NewRequest("GET", "/api/auth/check", nil)
	req.AddCookie(session)
	check := httptest.NewRecorder()
	env.srv.ServeHTTP(check, req)
	if decodeJSON(t, check)["authenticated"] != true {
		t.Fatalf("expected session to authenticate, got %s", check.Body.String())
	}

	rec = env.do(t, "GET", "/api/auth/check", nil, nil)
	if decodeJSON(t, rec)["authenticated"] != false {
		t.Fatalf("expected anonymous check to be false")
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	for i := 0; i < loginAttempts; i++ {
		env.do(t, "POST", "/api/auth/login", strings.NewReader(`{"email":"x","password":"y"}`), nil)
	}

	rec := env.do(t, "POST", "/api/auth/login", strings.NewReader(`{"email":"admin@example.com","password":"hunter2"}`), nil)
	if rec.Code != 429 {
		t.Fatalf("expected login to be throttled, got %d", rec.Code)
	}
}

func TestOpenAccessInDevelopment(t *testing.T) {
	t.Parallel()

	env := newTestEnvWith(t, nil, func(opts *Options) {
		opts.Auth = AuthSettings{OpenAccess: true}
	})

	rec := env.do(t, "GET", "/api/auth/check", nil, nil)
	if decodeJSON(t, rec)["authenticated"] != true {
		t.Fatalf("expected open access to authenticate every request")
	}
}

func TestUploadStoresImage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := env.upload(t, "/api/upload", pngBytes(t), nil)
	if rec.Code != 401 {
		t.Fatalf("expected anonymous upload to be rejected, got %d", rec.Code)
	}

	rec = env.upload(t, "/api/upload", pngBytes(t), adminHeaders())
	if rec.Code != 200 {
		t.Fatalf("expected upload success, got %d %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	url := body["url"].(string)
	if body["success"] != true || !strings.HasPrefix(url, "/uploads/blog-images/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("unexpected upload response %v", body)
	}

	served := env.do(t, "GET", url, nil, nil)
	if served.Code != 200 || served.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected stored image to be served, got %d %q", served.Code, served.Header().Get("Content-Type"))
	}

	rec = env.upload(t, "/api/upload", []byte("plain text"), adminHeaders())
	if rec.Code != 400 || decodeJSON(t, rec)["error"] != "Invalid file type. Only images are allowed." {
		t.Fatalf("expected file type rejection, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.upload(t, "/api/upload", oversizedPNGHeader(), adminHeaders())
	if rec.Code != 400 || decodeJSON(t, rec)["error"] != "Image dimensions too large. Maximum is 40 megapixels." {
		t.Fatalf("expected dimension rejection, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestFeedAndSitemap(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.createPost(t, "tech-1", "피드 글 & 리뷰", true)
	env.createPost(t, "tech-2", "숨김", false)
	env.createPost(t, "테크-3", "한글 슬러그", true)

	rec := env.do(t, "GET", "/feed.xml", nil, nil)
	if rec.Code != 200 || rec.Header().Get("Content-Type") != xmlContentType {
		t.Fatalf("unexpected feed response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Cache-Control") != feedCache {
		t.Fatalf("expected cache header, got %q", rec.Header().Get("Cache-Control"))
	}
	feed := rec.Body.String()
	if !contains(feed, "<title>피드 글 &amp; 리뷰</title>") || contains(feed, "숨김") {
		t.Fatalf("unexpected feed items %q", feed)
	}
	if !contains(feed, `<atom:link href="https://blog.example.com/feed.xml" rel="self"`) {
		t.Fatalf("expected atom self link, got %q", feed)
	}
	if !contains(feed, "<link>https://blog.example.com/posts/%ED%85%8C%ED%81%AC-3</link>") {
		t.Fatalf("expected escaped post link in feed, got %q", feed)
	}

	rec = env.do(t, "GET", "/sitemap.xml", nil, nil)
	sitemap := rec.Body.String()
	if !contains(sitemap, "<loc>https://blog.example.com/posts/tech-1</loc>") || contains(sitemap, "tech-2") {
		t.Fatalf("unexpected sitemap %q", sitemap)
	}
	if !contains(sitemap, "<loc>https://blog.example.com/posts/%ED%85%8C%ED%81%AC-3</loc>") {
		t.Fatalf("expected escaped post url, got %q", sitemap)
	}
	if !contains(sitemap, "https://blog.example.com/category/%EB%AA%A8%EB%B0%94%EC%9D%BC%20%EA%B8%B0%EC%88%A0") {
		t.Fatalf("expected escaped category url, got %q", sitemap)
	}

	rec = env.do(t, "GET", "/robots.txt", nil, nil)
	if !contains(rec.Body.String(), "Sitemap: https://blog.example.com/sitemap.xml") {
		t.Fatalf("unexpected robots %q", rec.Body.String())
	}
}

func TestAdminDashboardRequiresLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/admin", nil, nil)
	if rec.Code != 303 || rec.Header().Get("Location") != adminLoginPath {
		t.Fatalf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = env.do(t, "GET", "/admin", nil, adminHeaders())
	if rec.Code != 200 || !contains(rec.Body.String(), `value="tech-1"`) {
		t.Fatalf("expected dashboard with suggested slug, got %d", rec.Code)
	}
}

func TestAdminFormCreatesPost(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	form := "title=%ED%8F%BC&slug=tech-1&content=%3Cp%3Ehi%3C%2Fp%3E&category=%EA%B8%B0%ED%83%80&tags=a%2C+b&faq=Q1+%7C+A1&product_price=1%2C000&is_published=true"

	headers := adminHeaders()
	headers["Content-Type"] = "application/x-www-form-urlencoded"
	rec := env.do(t, "POST", "/admin/posts", strings.NewReader(form), headers)
	if rec.Code != 303 || !contains(rec.Header().Get("Location"), "edit=") {
		t.Fatalf("expected redirect to editor, got %d %q %s", rec.Code, rec.Header().Get("Location"), rec.Body.String())
	}

	post, err := env.blog.GetPost(context.Background(), env.idOf(t, "tech-1"))
	if err != nil {
		t.Fatalf("GetPost returned error: %v", err)
	}
	if len(post.Tags) != 2 || len(post.FAQ) != 1 || post.ProductPrice == nil || *post.ProductPrice != 1000 {
		t.Fatalf("unexpected stored post %+v", post)
	}

	rec = env.do(t, "POST", "/admin/posts", strings.NewReader(form), headers)
	if rec.Code != 409 || !contains(rec.Body.String(), "이미 사용 중인 슬러그입니다.") {
		t.Fatalf("expected conflict re-render, got %d", rec.Code)
	}
}

func TestHealthRouteReportsOK(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/api/health", nil, nil)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["status"] != "ok" || body["generator"] != "unconfigured" {
		t.Fatalf("unexpected health body %v", body)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	t.Parallel()

	env := newTestEnvWith(t, nil, func(opts *Options) {
		opts.RateLimiter = RateLimiterSettings{RequestsPerSecond: 0.001, Burst: 1, ClientTTL: time.Minute}
	})

	if rec := env.do(t, "GET", "/api/settings", nil, nil); rec.Code != 200 {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec := env.do(t, "GET", "/api/settings", nil, nil)
	if rec.Code != 429 || decodeJSON(t, rec)["error"] != rateLimitMessage {
		t.Fatalf("expected JSON 429, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "GET", "/", nil, nil)
	if rec.Code != 429 || rec.Header().Get("Content-Type") != htmlContentType {
		t.Fatalf("expected HTML 429 page, got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

// helper utilities

type testEnv struct {
	srv  *Server
	blog *blog.Service
}

func newTestEnv(t *testing.T, generator llm.Generator) *testEnv {
	return newTestEnvWith(t, generator, nil)
}

func newTestEnvWith(t *testing.T, generator llm.Generator, configure func(*Options)) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	gormDB, err := db.Open(db.Options{Path: filepath.Join(t.TempDir(), "blog.db")})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gormDB) })

	if err := blog.Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	repo, err := blog.NewRepository(gormDB, logger)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}

	index, err := search.Open("", logger)
	if err != nil {
		t.Fatalf("search.Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = index.Close() })

	service, err := blog.NewService(blog.ServiceOptions{
		Repository: repo,
		Generator:  generator,
		Search:     index,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	uploadDir := t.TempDir()
	bucket, err := storage.NewLocalBucket(uploadDir, "/uploads/")
	if err != nil {
		t.Fatalf("NewLocalBucket returned error: %v", err)
	}
	uploader, err := storage.NewUploader(storage.UploaderOptions{Bucket: bucket, Logger: logger})
	if err != nil {
		t.Fatalf("NewUploader returned error: %v", err)
	}

	opts := Options{
		Blog:      service,
		Uploader:  uploader,
		Database:  gormDB,
		Logger:    logger,
		SiteURL:   testSiteURL,
		UploadDir: uploadDir,
		Auth: AuthSettings{
			Email:         testAdminEmail,
			Password:      testAdminPassword,
			SecretKey:     testAdminKey,
			SessionSecret: "0123456789abcdef0123456789abcdef",
		},
		RateLimiter: RateLimiterSettings{RequestsPerSecond: 1000, Burst: 1000, ClientTTL: time.Minute},
	}
	if configure != nil {
		configure(&opts)
	}

	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, blog: service}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, target string, data []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		t.Fatalf("CreateFormFile returned error: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("writing form file failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer failed: %v", err)
	}

	all := map[string]string{"Content-Type": writer.FormDataContentType()}
	for key, value := range headers {
		all[key] = value
	}

	req := httptest.NewRequest("POST", target, &buf)
	for key, value := range all {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createPost(t *testing.T, slug, title string, published bool) {
	t.Helper()

	content := "<p>본문 내용</p>"
	category := "모바일 기술"
	_, err := e.blog.CreatePost(context.Background(), blog.PostInput{
		Title:       &title,
		Slug:        &slug,
		Content:     &content,
		Category:    &category,
		IsPublished: &published,
	})
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
}

func (e *testEnv) idOf(t *testing.T, slug string) string {
	t.Helper()

	posts, err := e.blog.ListAllPosts(context.Background())
	if err != nil {
		t.Fatalf("ListAllPosts returned error: %v", err)
	}
	for _, post := range posts {
		if post.Slug == slug {
			return post.ID
		}
	}
	t.Fatalf("post %q not found", slug)
	return ""
}

func adminHeaders() map[string]string {
	return map[string]string{adminKeyHeader: testAdminKey}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json response %q: %v", rec.Body.String(), err)
	}
	return out
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode returned error: %v", err)
	}
	return buf.Bytes()
}

// oversizedPNGHeader declares a 10000x10000 RGBA image and carries no pixels.
func oversizedPNGHeader() []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], 10000)
	binary.BigEndian.PutUint32(ihdr[4:8], 10000)
	ihdr[8], ihdr[9] = 8, 6

	chunk := append([]byte("IHDR"), ihdr...)
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func contains(body, substring string) bool {
	return strings.Contains(body, substring)
}

type stubGenerator struct {
	post *llm.InfoPost
	err  error
}

func (s *stubGenerator) Generate(_ context.Context, _ string) (*llm.InfoPost, error) {
	if s.err != nil {
		return nil, s.err
	}
	copied := *s.post
	return &copied, nil
}

var _ llm.Generator = (*stubGenerator)(nil)
