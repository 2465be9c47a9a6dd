package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	stdhttp "net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
	"github.com/mangorocketofficial/tech-blog/internal/http/templates"
)

const (
	htmlContentType      = "text/html; charset=utf-8"
	jsonContentType      = "application/json; charset=utf-8"
	errorFallbackMessage = "요청을 처리하지 못했습니다. 잠시 후 다시 시도해 주세요."
	notFoundMessage      = "요청하신 페이지를 찾을 수 없습니다."
)

type htmlResponse struct {
	Status       int
	ContentType  string `header:"Content-Type"`
	Location     string `header:"Location"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

type errorBody struct {
	Error string `json:"error"`
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func newRedirect(location string) *htmlResponse {
	response := newHTMLResponse(stdhttp.StatusSeeOther, nil)
	response.Location = location
	return response
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return contentOperation(summary, htmlContentType, statuses...)
}

func contentOperation(summary, contentType string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					contentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

func renderComponent(ctx context.Context, component templ.Component) ([]byte, error) {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return nil, eris.Wrap(err, "rendering component")
	}
	return buf.Bytes(), nil
}

// classifyError maps service errors on page routes to a status and message.
func classifyError(err error) (int, string) {
	switch {
	case err == nil:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	case eris.Is(err, blog.ErrNotFound):
		return stdhttp.StatusNotFound, notFoundMessage
	case eris.Is(err, blog.ErrInvalidInput):
		return stdhttp.StatusBadRequest, "잘못된 요청입니다."
	default:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}
}

func (s *Server) renderErrorResponse(ctx context.Context, status int, message string) (*htmlResponse, error) {
	label := fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
	site := s.siteFromDefaults()
	if loaded, err := s.blog.Settings(ctx); err == nil {
		site = s.site(ctx, loaded)
	}

	component := templates.ErrorPage(templates.ErrorPageData{
		Site:        site,
		Meta:        templates.Meta{Title: label + " | " + site.Name, NoIndex: true},
		StatusLabel: label,
		Message:     message,
	})

	body, err := renderComponent(ctx, component)
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", label, html.EscapeString(message))
		return newHTMLResponse(status, []byte(fallback)), nil
	}

	return newHTMLResponse(status, body), nil
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}

// writeHumaResponse writes a rendered page from inside a Huma middleware.
func writeHumaResponse(ctx huma.Context, resp *htmlResponse) {
	if resp == nil {
		ctx.SetStatus(stdhttp.StatusInternalServerError)
		return
	}
	if resp.ContentType != "" {
		ctx.SetHeader("Content-Type", resp.ContentType)
	}
	ctx.SetStatus(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = ctx.BodyWriter().Write(resp.Body)
	}
}

// writeHTMLResponse writes a rendered page from a plain handler.
func writeHTMLResponse(w stdhttp.ResponseWriter, resp *htmlResponse) {
	if resp == nil {
		w.WriteHeader(stdhttp.StatusInternalServerError)
		return
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	if resp.Location != "" {
		w.Header().Set("Location", resp.Location)
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

func writeJSON(w stdhttp.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = stdhttp.StatusInternalServerError
		body = jsonErrorBody(errorFallbackMessage)
	}
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func jsonErrorBody(message string) []byte {
	body, _ := json.Marshal(errorBody{Error: message})
	return body
}
