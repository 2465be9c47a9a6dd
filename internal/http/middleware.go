package http

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const rateLimitMessage = "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요."

func (s *Server) requestIDMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		reqID := uuid.NewString()
		goCtx := context.WithValue(ctx.Context(), requestIDContextKey, reqID)
		ctx = huma.WithContext(ctx, goCtx)
		ctx.SetHeader("X-Request-ID", reqID)

		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}

		next(ctx)
	}
}

func (s *Server) adminMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		req, _ := humago.Unwrap(ctx)
		admin := req != nil && s.authenticated(req)
		next(huma.WithContext(ctx, withAdmin(ctx.Context(), admin)))
	}
}

// notFoundMiddleware answers unknown paths that fell through to the "/" route.
func (s *Server) notFoundMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || op.Path != "/" {
			next(ctx)
			return
		}

		if u := ctx.URL(); u.Path == "/" || u.Path == "" {
			next(ctx)
			return
		}

		resp, _ := s.renderErrorResponse(ctx.Context(), stdhttp.StatusNotFound, notFoundMessage)
		writeHumaResponse(ctx, resp)
	}
}

func (s *Server) rateLimitMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		req, _ := humago.Unwrap(ctx)
		if req == nil || s.allowRequest(ctx.Context(), req) {
			next(ctx)
			return
		}

		ctx.SetHeader("Retry-After", "1")
		if isAPIPath(req.URL.Path) {
			ctx.SetHeader("Content-Type", jsonContentType)
			ctx.SetStatus(stdhttp.StatusTooManyRequests)
			_, _ = ctx.BodyWriter().Write(jsonErrorBody(rateLimitMessage))
			return
		}

		resp, _ := s.renderErrorResponse(ctx.Context(), stdhttp.StatusTooManyRequests, rateLimitMessage)
		writeHumaResponse(ctx, resp)
	}
}

func (s *Server) loggingMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		next(ctx)

		route := ""
		if op := ctx.Operation(); op != nil {
			route = op.Path
		}

		path, remote := "", ""
		if req, _ := humago.Unwrap(ctx); req != nil {
			path = req.URL.Path
			remote = req.RemoteAddr
		}

		s.logRequest(ctx.Context(), ctx.Method(), route, path, remote, ctx.Status(), start)
	}
}

func (s *Server) recoveryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			if rec := recover(); rec != nil {
				s.recordPanic(ctx.Context(), rec)

				ctx.SetHeader("Content-Type", "text/plain; charset=utf-8")
				ctx.SetStatus(stdhttp.StatusInternalServerError)
				_, _ = ctx.BodyWriter().Write([]byte("internal server error"))
			}
		}()

		next(ctx)
	}
}

func (s *Server) sentryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		scope := hub.Scope()
		scope.SetTag("http.method", ctx.Method())
		if op := ctx.Operation(); op != nil {
			scope.SetTag("http.route", op.Path)
		}

		goCtx := sentry.SetHubOnContext(ctx.Context(), hub)
		ctx = huma.WithContext(ctx, goCtx)

		defer hub.Flush(2 * time.Second)

		next(ctx)
	}
}

// wrapRaw gives handlers registered directly on the mux the same treatment
// the Huma middleware chain gives operations.
func (s *Server) wrapRaw(handler stdhttp.HandlerFunc) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		start := time.Now()
		ctx := r.Context()

		if s.sentry != nil {
			hub := s.sentry.Clone()
			hub.Scope().SetTag("http.method", r.Method)
			hub.Scope().SetTag("http.route", r.Pattern)
			ctx = sentry.SetHubOnContext(ctx, hub)
			defer hub.Flush(2 * time.Second)
		}

		reqID := uuid.NewString()
		ctx = context.WithValue(ctx, requestIDContextKey, reqID)
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}
		ctx = withAdmin(ctx, s.authenticated(r))
		r = r.WithContext(ctx)

		w.Header().Set("X-Request-ID", reqID)
		rec := &statusRecorder{ResponseWriter: w}

		defer func() {
			if value := recover(); value != nil {
				s.recordPanic(ctx, value)
				if rec.status == 0 {
					stdhttp.Error(rec, "internal server error", stdhttp.StatusInternalServerError)
				}
			}
			s.logRequest(ctx, r.Method, r.Pattern, r.URL.Path, r.RemoteAddr, rec.status, start)
		}()

		if !s.allowRequest(ctx, r) {
			rec.Header().Set("Retry-After", "1")
			if isAPIPath(r.URL.Path) {
				writeJSON(rec, stdhttp.StatusTooManyRequests, errorBody{Error: rateLimitMessage})
				return
			}
			resp, _ := s.renderErrorResponse(ctx, stdhttp.StatusTooManyRequests, rateLimitMessage)
			writeHTMLResponse(rec, resp)
			return
		}

		handler(rec, r)
	})
}

type statusRecorder struct {
	stdhttp.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = stdhttp.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() stdhttp.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) allowRequest(ctx context.Context, req *stdhttp.Request) bool {
	ip := clientIPFromRequest(req)
	if s.rateLimiter.Allow(ip) {
		return true
	}

	if s.logger != nil {
		fields := logrus.Fields{
			"ip":   ip,
			"path": req.URL.Path,
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			fields["request_id"] = requestID
		}
		s.logger.WithError(eris.New("rate limit exceeded")).WithFields(fields).Warn("request rate limited")
	}
	return false
}

func (s *Server) logRequest(ctx context.Context, method, route, path, remote string, status int, start time.Time) {
	if s.logger == nil {
		return
	}

	if status == 0 {
		status = stdhttp.StatusOK
	}

	fields := logrus.Fields{
		"method":      method,
		"status":      status,
		"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		"path":        path,
		"remote_addr": remote,
		"admin":       IsAdmin(ctx),
	}
	if route != "" {
		fields["route"] = route
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields["request_id"] = requestID
	}

	entry := s.logger.WithFields(fields)
	if status >= 500 {
		entry.Error("request failed")
	} else {
		entry.Info("request completed")
	}
}

func (s *Server) recordPanic(ctx context.Context, rec any) {
	var err error
	switch v := rec.(type) {
	case error:
		err = v
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error("panic recovered")
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = s.sentry
	}
	if hub != nil {
		hub.RecoverWithContext(ctx, rec)
		hub.Flush(2 * time.Second)
	}
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func clientIPFromRequest(req *stdhttp.Request) string {
	if req == nil {
		return ""
	}

	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if candidate := strings.TrimSpace(parts[0]); candidate != "" {
			return candidate
		}
	}

	if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
