package http

import (
	"context"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
	"github.com/mangorocketofficial/tech-blog/internal/http/templates"
)

const (
	adminPath      = "/admin"
	adminLoginPath = "/admin/login"
	faqSeparator   = "|"
)

type adminInput struct {
	Edit    string `query:"edit"`
	Message string `query:"msg"`
	Image   string `query:"image"`
}

type adminLoginInput struct {
	Error string `query:"error"`
}

func (s *Server) registerAdminRoutes() {
	huma.Get(s.api, adminPath, s.adminHandler, htmlOperation(
		"Admin dashboard",
		stdhttp.StatusSeeOther,
		stdhttp.StatusInternalServerError,
	))
	huma.Get(s.api, adminLoginPath, s.adminLoginPageHandler, htmlOperation("Admin login"))

	s.mux.Handle("POST "+adminLoginPath, s.wrapRaw(s.adminLoginHandler))
	s.mux.Handle("POST /admin/logout", s.wrapRaw(s.adminLogoutHandler))
	s.mux.Handle("POST /admin/posts", s.wrapRaw(s.adminOnly(s.adminSavePostHandler)))
	s.mux.Handle("POST /admin/posts/delete", s.wrapRaw(s.adminOnly(s.adminDeletePostHandler)))
	s.mux.Handle("POST /admin/generate", s.wrapRaw(s.adminOnly(s.adminGenerateHandler)))
	s.mux.Handle("POST /admin/settings", s.wrapRaw(s.adminOnly(s.adminSettingsHandler)))
	s.mux.Handle("POST /admin/upload", s.wrapRaw(s.adminOnly(s.adminUploadHandler)))
}

func adminRedirect(message string, extra url.Values) string {
	values := url.Values{}
	for key, list := range extra {
		values[key] = list
	}
	if message != "" {
		values.Set("msg", message)
	}
	if len(values) == 0 {
		return adminPath
	}
	return adminPath + "?" + values.Encode()
}

func (s *Server) adminOnly(handler stdhttp.HandlerFunc) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if !IsAdmin(r.Context()) {
			stdhttp.Redirect(w, r, adminLoginPath, stdhttp.StatusSeeOther)
			return
		}
		handler(w, r)
	}
}

func (s *Server) adminHandler(ctx context.Context, input *adminInput) (*htmlResponse, error) {
	if !IsAdmin(ctx) {
		return newRedirect(adminLoginPath), nil
	}

	form := templates.PostForm{FeaturedImage: strings.TrimSpace(input.Image)}
	if id := strings.TrimSpace(input.Edit); id != "" {
		post, err := s.blog.GetPost(ctx, id)
		if err != nil {
			status, message := classifyError(err)
			if status >= stdhttp.StatusInternalServerError {
				s.recordError(ctx, err, "loading post for edit", logrus.Fields{"post_id": id})
			}
			return s.renderErrorResponse(ctx, status, message)
		}
		form = formFromPost(post)
		if input.Image != "" {
			form.FeaturedImage = strings.TrimSpace(input.Image)
		}
	}

	body, status, err := s.renderAdmin(ctx, form, strings.TrimSpace(input.Message), stdhttp.StatusOK)
	if err != nil {
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}
	return newHTMLResponse(status, body), nil
}

// renderAdmin renders the dashboard with the given editor state.
func (s *Server) renderAdmin(ctx context.Context, form templates.PostForm, message string, status int) ([]byte, int, error) {
	posts, err := s.blog.ListAllPosts(ctx)
	if err != nil {
		s.recordError(ctx, err, "listing posts for admin", nil)
		return nil, stdhttp.StatusInternalServerError, err
	}

	if form.ID == "" && form.Slug == "" {
		if next, err := s.blog.NextDraftSlug(ctx); err == nil {
			form.Slug = next
		}
	}
	canonical, err := s.blog.NextCanonicalSlug(ctx)
	if err != nil {
		s.recordError(ctx, err, "computing canonical slug", nil)
	}

	settings := s.loadSettings(ctx)
	rows := make([]templates.AdminPostRow, 0, len(posts))
	for i := range posts {
		post := &posts[i]
		rows = append(rows, templates.AdminPostRow{
			ID:        post.ID,
			Title:     post.Title,
			Slug:      post.Slug,
			Category:  post.Category,
			Published: post.IsPublished,
			Date:      formatDate(post),
			Views:     post.ViewCount,
		})
	}

	data := templates.AdminPageData{
		Site:             s.site(ctx, settings),
		Meta:             templates.Meta{Title: "관리자 | " + settings.SiteName, NoIndex: true},
		Message:          message,
		Posts:            rows,
		Form:             form,
		CanonicalSlug:    canonical,
		GeneratorEnabled: s.blog.GeneratorEnabled(),
		SettingsName:     settings.SiteName,
		SettingsDesc:     settings.SiteDescription,
		SettingsCats:     strings.Join(settings.Categories, "\n"),
	}

	body, err := renderComponent(ctx, templates.AdminPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering admin page", nil)
		return nil, stdhttp.StatusInternalServerError, err
	}
	return body, status, nil
}

func (s *Server) adminLoginPageHandler(ctx context.Context, input *adminLoginInput) (*htmlResponse, error) {
	if IsAdmin(ctx) {
		return newRedirect(adminPath), nil
	}

	settings := s.loadSettings(ctx)
	data := templates.AdminLoginData{
		Site: s.site(ctx, settings),
		Meta: templates.Meta{Title: "로그인 | " + settings.SiteName, NoIndex: true},
	}
	switch input.Error {
	case "":
	case "limited":
		data.Failed, data.Message = true, tooManyLoginsMessage
	case "config":
		data.Failed, data.Message = true, "관리자 계정이 설정되지 않았습니다."
	default:
		data.Failed, data.Message = true, invalidCredentialsMessage
	}

	body, err := renderComponent(ctx, templates.AdminLoginPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering login page", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}
	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) adminLoginHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ip := clientIPFromRequest(r)
	if !s.loginLimiter.Allow(ip) {
		stdhttp.Redirect(w, r, adminLoginPath+"?error=limited", stdhttp.StatusSeeOther)
		return
	}
	if !s.credentialsConfigured() {
		stdhttp.Redirect(w, r, adminLoginPath+"?error=config", stdhttp.StatusSeeOther)
		return
	}

	if !s.checkCredentials(r.PostFormValue("email"), r.PostFormValue("password")) {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"ip": ip, "request_id": RequestIDFromContext(r.Context())}).Warn("admin login rejected")
		}
		stdhttp.Redirect(w, r, adminLoginPath+"?error=invalid", stdhttp.StatusSeeOther)
		return
	}

	s.loginLimiter.Reset(ip)
	if err := s.startSession(w, r); err != nil {
		s.recordError(r.Context(), err, "starting admin session", nil)
		resp, _ := s.renderErrorResponse(r.Context(), stdhttp.StatusInternalServerError, errorFallbackMessage)
		writeHTMLResponse(w, resp)
		return
	}
	stdhttp.Redirect(w, r, adminPath, stdhttp.StatusSeeOther)
}

func (s *Server) adminLogoutHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if err := s.endSession(w, r); err != nil {
		s.recordError(r.Context(), err, "ending admin session", nil)
	}
	stdhttp.Redirect(w, r, "/", stdhttp.StatusSeeOther)
}

func (s *Server) adminSavePostHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()
	form := formFromRequest(r)

	input, err := inputFromForm(form)
	if err == nil {
		var post *blog.Post
		if form.ID != "" {
			post, err = s.blog.UpdatePost(ctx, form.ID, input)
		} else {
			post, err = s.blog.CreatePost(ctx, input)
		}
		if err == nil {
			stdhttp.Redirect(w, r, adminRedirect("저장되었습니다: "+post.Title, url.Values{"edit": {post.ID}}), stdhttp.StatusSeeOther)
			return
		}
	}

	status, message := adminFailure(err)
	if status >= stdhttp.StatusInternalServerError {
		s.recordError(ctx, err, "saving post from admin", logrus.Fields{"post_id": form.ID})
	}

	body, _, renderErr := s.renderAdmin(ctx, form, message, status)
	if renderErr != nil {
		resp, _ := s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
		writeHTMLResponse(w, resp)
		return
	}
	writeHTMLResponse(w, newHTMLResponse(status, body))
}

func (s *Server) adminDeletePostHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	id := strings.TrimSpace(r.PostFormValue("id"))
	if err := s.blog.DeletePost(r.Context(), id); err != nil {
		status, message := adminFailure(err)
		if status >= stdhttp.StatusInternalServerError {
			s.recordError(r.Context(), err, "deleting post from admin", logrus.Fields{"post_id": id})
		}
		stdhttp.Redirect(w, r, adminRedirect(message, nil), stdhttp.StatusSeeOther)
		return
	}
	stdhttp.Redirect(w, r, adminRedirect("삭제되었습니다.", nil), stdhttp.StatusSeeOther)
}

func (s *Server) adminGenerateHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	topic := strings.TrimSpace(r.PostFormValue("topic"))
	post, err := s.blog.GenerateInfoPost(r.Context(), topic)
	if err != nil {
		status, message := adminFailure(err)
		if status >= stdhttp.StatusInternalServerError {
			s.recordError(r.Context(), err, "generating post from admin", logrus.Fields{"topic": topic})
		}
		stdhttp.Redirect(w, r, adminRedirect(message, nil), stdhttp.StatusSeeOther)
		return
	}
	stdhttp.Redirect(w, r, adminRedirect(infoPostMessage, url.Values{"edit": {post.ID}}), stdhttp.StatusSeeOther)
}

func (s *Server) adminSettingsHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	name := r.PostFormValue("site_name")
	description := r.PostFormValue("site_description")
	categories := splitLines(r.PostFormValue("categories"))

	_, err := s.blog.UpdateSettings(r.Context(), blog.SettingsInput{
		Categories:      &categories,
		SiteName:        &name,
		SiteDescription: &description,
	})
	if err != nil {
		s.recordError(r.Context(), err, "updating settings from admin", nil)
		stdhttp.Redirect(w, r, adminRedirect(errorFallbackMessage, nil), stdhttp.StatusSeeOther)
		return
	}
	stdhttp.Redirect(w, r, adminRedirect("설정이 저장되었습니다.", nil), stdhttp.StatusSeeOther)
}

func (s *Server) adminUploadHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	uploaded, _, message := s.receiveUpload(w, r)
	if uploaded == nil {
		stdhttp.Redirect(w, r, adminRedirect(message, nil), stdhttp.StatusSeeOther)
		return
	}

	extra := url.Values{"image": {uploaded.URL}}
	if id := strings.TrimSpace(r.FormValue("id")); id != "" {
		extra.Set("edit", id)
	}
	stdhttp.Redirect(w, r, adminRedirect("업로드 완료: "+uploaded.URL, extra), stdhttp.StatusSeeOther)
}

// adminFailure maps a service error to the status and message shown above the editor.
func adminFailure(err error) (int, string) {
	switch {
	case eris.Is(err, blog.ErrSlugTaken):
		return stdhttp.StatusConflict, "이미 사용 중인 슬러그입니다."
	case eris.Is(err, blog.ErrInvalidInput):
		return stdhttp.StatusBadRequest, "입력값을 확인해 주세요: " + invalidInputMessage(err)
	case eris.Is(err, blog.ErrNotFound):
		return stdhttp.StatusNotFound, "포스트를 찾을 수 없습니다."
	case eris.Is(err, blog.ErrGeneratorUnavailable):
		return stdhttp.StatusServiceUnavailable, "AI 생성 기능이 설정되지 않았습니다."
	default:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}
}

func formFromPost(post *blog.Post) templates.PostForm {
	form := templates.PostForm{
		ID:               post.ID,
		Title:            post.Title,
		Slug:             post.Slug,
		Description:      post.DescriptionText(),
		Content:          post.Content,
		FeaturedImage:    deref(post.FeaturedImage),
		Category:         post.Category,
		Tags:             strings.Join(post.Tags, ", "),
		SEOKeywords:      strings.Join(post.SEOKeywords, ", "),
		CoupangURL:       deref(post.CoupangURL),
		CoupangProductID: deref(post.CoupangProductID),
		ProductName:      deref(post.ProductName),
		IsPublished:      post.IsPublished,
	}
	if post.ProductPrice != nil {
		form.ProductPrice = strconv.FormatFloat(*post.ProductPrice, 'f', -1, 64)
	}

	lines := make([]string, 0, len(post.FAQ))
	for _, item := range post.FAQ {
		lines = append(lines, item.Question+" "+faqSeparator+" "+item.Answer)
	}
	form.FAQ = strings.Join(lines, "\n")
	return form
}

func formFromRequest(r *stdhttp.Request) templates.PostForm {
	return templates.PostForm{
		ID:               strings.TrimSpace(r.PostFormValue("id")),
		Title:            r.PostFormValue("title"),
		Slug:             r.PostFormValue("slug"),
		Description:      r.PostFormValue("description"),
		Content:          r.PostFormValue("content"),
		FeaturedImage:    r.PostFormValue("featured_image"),
		Category:         r.PostFormValue("category"),
		Tags:             r.PostFormValue("tags"),
		SEOKeywords:      r.PostFormValue("seo_keywords"),
		FAQ:              r.PostFormValue("faq"),
		CoupangURL:       r.PostFormValue("coupang_url"),
		CoupangProductID: r.PostFormValue("coupang_product_id"),
		ProductName:      r.PostFormValue("product_name"),
		ProductPrice:     r.PostFormValue("product_price"),
		IsPublished:      r.PostFormValue("is_published") != "",
	}
}

// inputFromForm converts editor fields into a full post input. A blank price
// clears the stored one.
func inputFromForm(form templates.PostForm) (blog.PostInput, error) {
	price := 0.0
	if raw := strings.TrimSpace(form.ProductPrice); raw != "" {
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return blog.PostInput{}, eris.Wrap(blog.ErrInvalidInput, "invalid product_price")
		}
		price = parsed
	}

	tags := splitList(form.Tags)
	keywords := splitList(form.SEOKeywords)
	faq := parseFAQ(form.FAQ)

	return blog.PostInput{
		Title:            &form.Title,
		Slug:             &form.Slug,
		Description:      &form.Description,
		Content:          &form.Content,
		FeaturedImage:    &form.FeaturedImage,
		CoupangURL:       &form.CoupangURL,
		CoupangProductID: &form.CoupangProductID,
		ProductName:      &form.ProductName,
		ProductPrice:     &price,
		Category:         &form.Category,
		Tags:             &tags,
		SEOKeywords:      &keywords,
		FAQ:              &faq,
		IsPublished:      &form.IsPublished,
	}, nil
}

func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })
}

func splitLines(raw string) []string {
	return strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
}

// parseFAQ reads one "question | answer" pair per line.
func parseFAQ(raw string) []blog.FAQItem {
	items := []blog.FAQItem{}
	for _, line := range splitLines(raw) {
		question, answer, found := strings.Cut(line, faqSeparator)
		question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
		if !found || question == "" || answer == "" {
			continue
		}
		items = append(items, blog.FAQItem{Question: question, Answer: answer})
	}
	return items
}
