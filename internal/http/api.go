package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
	"github.com/mangorocketofficial/tech-blog/internal/db"
)

const (
	postUpdatedMessage   = "포스트가 성공적으로 업데이트되었습니다."
	infoPostMessage      = "정보 포스트가 성공적으로 생성되었습니다."
	settingsSavedMessage = "Settings updated"
)

// apiError is the JSON error envelope of the /api routes.
type apiError struct {
	status  int
	Message string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (e *apiError) Error() string {
	return e.Message
}

func (e *apiError) GetStatus() int {
	return e.status
}

func init() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		details := make([]string, 0, len(errs))
		for _, err := range errs {
			if err != nil {
				details = append(details, err.Error())
			}
		}
		return &apiError{status: status, Message: message, Details: details}
	}
}

type postBody struct {
	_ struct{} `json:"-" additionalProperties:"true"`
	blog.PostInput
}

type updatePostBody struct {
	_  struct{} `json:"-" additionalProperties:"true"`
	ID string   `json:"id,omitempty"`
	blog.PostInput
}

type patchPostBody struct {
	_ struct{} `json:"-" additionalProperties:"true"`
	blog.PatchInput
}

type settingsBody struct {
	_ struct{} `json:"-" additionalProperties:"true"`
	blog.SettingsInput
}

type createPostInput struct {
	Body postBody
}

type updatePostInput struct {
	Body    updatePostBody
	RawBody []byte
}

type deletePostInput struct {
	ID string `query:"id"`
}

type postIDInput struct {
	ID string `path:"id"`
}

type patchPostInput struct {
	ID      string `path:"id"`
	Body    patchPostBody
	RawBody []byte
}

type generateInput struct {
	Body struct {
		_     struct{} `json:"-" additionalProperties:"true"`
		Topic string   `json:"topic,omitempty"`
	}
}

type updateSettingsInput struct {
	Body settingsBody
}

type postsOutput struct {
	Body struct {
		Posts []blog.Post `json:"posts"`
	}
}

type postOutput struct {
	Body struct {
		Post    *blog.Post `json:"post"`
		Message string     `json:"message,omitempty"`
	}
}

type successOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

type nextSlugOutput struct {
	Body struct {
		Slug      string `json:"slug"`
		Canonical string `json:"canonical"`
	}
}

type settingsOutput struct {
	Body struct {
		Settings *blog.Settings `json:"settings"`
		Message  string         `json:"message,omitempty"`
	}
}

type authCheckOutput struct {
	Body struct {
		Authenticated bool `json:"authenticated"`
	}
}

type healthOutput struct {
	Status int
	Body   struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
		Database  string    `json:"database"`
		Generator string    `json:"generator"`
		Uploads   string    `json:"uploads"`
	}
}

func (s *Server) registerAPIRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-posts",
		Method:      stdhttp.MethodGet,
		Path:        "/api/posts",
		Summary:     "List every post",
	}, s.listPostsHandler)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-post",
		Method:        stdhttp.MethodPost,
		Path:          "/api/posts",
		Summary:       "Create a post",
		DefaultStatus: stdhttp.StatusCreated,
	}, s.createPostHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-post",
		Method:      stdhttp.MethodPut,
		Path:        "/api/posts",
		Summary:     "Replace the provided fields of a post",
	}, s.updatePostHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-post",
		Method:      stdhttp.MethodDelete,
		Path:        "/api/posts",
		Summary:     "Delete a post",
	}, s.deletePostHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "next-slug",
		Method:      stdhttp.MethodGet,
		Path:        "/api/posts/next-slug",
		Summary:     "Suggest the next sequential slugs",
	}, s.nextSlugHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-post",
		Method:      stdhttp.MethodGet,
		Path:        "/api/posts/{id}",
		Summary:     "Fetch a post by id",
	}, s.getPostHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "patch-post",
		Method:      stdhttp.MethodPatch,
		Path:        "/api/posts/{id}",
		Summary:     "Partially update a post",
	}, s.patchPostHandler)

	huma.Register(s.api, huma.Operation{
		OperationID:   "generate-info-post",
		Method:        stdhttp.MethodPost,
		Path:          "/api/generate-info-post",
		Summary:       "Generate and publish an informational post",
		DefaultStatus: stdhttp.StatusCreated,
	}, s.generateInfoPostHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-settings",
		Method:      stdhttp.MethodGet,
		Path:        "/api/settings",
		Summary:     "Read site settings",
	}, s.getSettingsHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-settings",
		Method:      stdhttp.MethodPut,
		Path:        "/api/settings",
		Summary:     "Update site settings",
	}, s.updateSettingsHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "auth-check",
		Method:      stdhttp.MethodGet,
		Path:        "/api/auth/check",
		Summary:     "Report whether the caller is the administrator",
	}, s.authCheckHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      stdhttp.MethodGet,
		Path:        "/api/health",
		Summary:     "Health check",
	}, s.healthHandler)
}

func requireAdmin(ctx context.Context) error {
	if !IsAdmin(ctx) {
		return huma.Error401Unauthorized("Unauthorized")
	}
	return nil
}

// apiFailure converts a service error into the JSON error envelope. Only
// unexpected failures are recorded; the service already logged their cause.
func (s *Server) apiFailure(ctx context.Context, err error, message string, fields logrus.Fields) error {
	switch {
	case eris.Is(err, blog.ErrSlugTaken):
		return huma.Error409Conflict(blog.ErrSlugTaken.Error())
	case eris.Is(err, blog.ErrNoFields):
		return huma.Error400BadRequest("No valid fields to update")
	case eris.Is(err, blog.ErrInvalidInput):
		return huma.Error400BadRequest(invalidInputMessage(err))
	case eris.Is(err, blog.ErrNotFound):
		return huma.Error404NotFound("Post not found")
	case eris.Is(err, blog.ErrGeneratorUnavailable):
		return huma.Error503ServiceUnavailable("AI post generation is not configured")
	}

	s.recordError(ctx, err, message, fields)
	return huma.Error500InternalServerError(message)
}

// invalidInputMessage returns the validation detail without the sentinel suffix.
func invalidInputMessage(err error) string {
	message := strings.TrimSuffix(err.Error(), ": "+blog.ErrInvalidInput.Error())
	if message == "" || message == blog.ErrInvalidInput.Error() {
		return "Invalid input"
	}
	return message
}

func (s *Server) listPostsHandler(ctx context.Context, _ *struct{}) (*postsOutput, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	posts, err := s.blog.ListAllPosts(ctx)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to fetch posts", nil)
	}

	out := &postsOutput{}
	out.Body.Posts = posts
	if out.Body.Posts == nil {
		out.Body.Posts = []blog.Post{}
	}
	return out, nil
}

func (s *Server) createPostHandler(ctx context.Context, input *createPostInput) (*postOutput, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	post, err := s.blog.CreatePost(ctx, input.Body.PostInput)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to create post", nil)
	}

	out := &postOutput{}
	out.Body.Post = post
	return out, nil
}

func (s *Server) updatePostHandler(ctx context.Context, input *updatePostInput) (*postOutput, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(input.Body.ID)
	if id == "" {
		return nil, huma.Error400BadRequest("Post ID is required")
	}

	update := input.Body.PostInput
	nulls, err := blog.NullFields(input.RawBody)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to update post", nil)
	}
	update.Null = nulls

	post, err := s.blog.UpdatePost(ctx, id, update)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to update post", logrus.Fields{"post_id": id})
	}

	out := &postOutput{}
	out.Body.Post = post
	return out, nil
}

func (s *Server) deletePostHandler(ctx context.Context, input *deletePostInput) (*successOutput, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, huma.Error400BadRequest("Post ID is required")
	}

	if err := s.blog.DeletePost(ctx, id); err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to delete post", logrus.Fields{"post_id": id})
	}

	out := &successOutput{}
	out.Body.Success = true
	return out, nil
}

func (s *Server) nextSlugHandler(ctx context.Context, _ *struct{}) (*nextSlugOutput, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	draft, err := s.blog.NextDraftSlug(ctx)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to compute next slug", nil)
	}
	canonical, err := s.blog.NextCanonicalSlug(ctx)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to compute next slug", nil)
	}

	out := &nextSlugOutput{}
	out.Body.Slug = draft
	out.Body.Canonical = canonical
	return out, nil
}

// getPostHandler serves drafts to the administrator only.
func (s *Server) getPostHandler(ctx context.Context, input *postIDInput) (*postOutput, error) {
	post, err := s.blog.GetPost(ctx, input.ID)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to fetch post", logrus.Fields{"post_id": input.ID})
	}
	if !post.IsPublished && !IsAdmin(ctx) {
		return nil, huma.Error404NotFound("Post not found")
	}

	out := &postOutput{}
	out.Body.Post = post
	return out, nil
}

func (s *Server) patchPostHandler(ctx context.Context, input *patchPostInput) (*postOutput, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	patch := input.Body.PatchInput
	nulls, err := blog.NullFields(input.RawBody)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to update post", nil)
	}
	patch.Null = nulls

	post, err := s.blog.PatchPost(ctx, input.ID, patch)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to update post", logrus.Fields{"post_id": input.ID})
	}

	out := &postOutput{}
	out.Body.Post = post
	out.Body.Message = postUpdatedMessage
	return out, nil
}

func (s *Server) generateInfoPostHandler(ctx context.Context, input *generateInput) (*postOutput, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	topic := strings.TrimSpace(input.Body.Topic)
	if topic == "" {
		return nil, huma.Error400BadRequest("Topic is required")
	}

	post, err := s.blog.GenerateInfoPost(ctx, topic)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to generate post", logrus.Fields{"topic": topic})
	}

	out := &postOutput{}
	out.Body.Post = post
	out.Body.Message = infoPostMessage
	return out, nil
}

func (s *Server) getSettingsHandler(ctx context.Context, _ *struct{}) (*settingsOutput, error) {
	settings, err := s.blog.Settings(ctx)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to fetch settings", nil)
	}

	out := &settingsOutput{}
	out.Body.Settings = settings
	return out, nil
}

func (s *Server) updateSettingsHandler(ctx context.Context, input *updateSettingsInput) (*settingsOutput, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	settings, err := s.blog.UpdateSettings(ctx, input.Body.SettingsInput)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "Failed to update settings", nil)
	}

	out := &settingsOutput{}
	out.Body.Settings = settings
	out.Body.Message = settingsSavedMessage
	return out, nil
}

func (s *Server) authCheckHandler(ctx context.Context, _ *struct{}) (*authCheckOutput, error) {
	out := &authCheckOutput{}
	out.Body.Authenticated = IsAdmin(ctx)
	return out, nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthOutput, error) {
	resp := &healthOutput{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Timestamp = time.Now().UTC()
	resp.Body.Database = "ok"
	resp.Body.Generator = "ready"
	resp.Body.Uploads = "ready"

	if err := db.Ping(s.db); err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	if !s.blog.GeneratorEnabled() {
		resp.Body.Generator = "unconfigured"
	}
	if s.uploader == nil {
		resp.Body.Uploads = "unconfigured"
	}

	return resp, nil
}
