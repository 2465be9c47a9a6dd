package http

import (
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/mangorocketofficial/tech-blog/internal/storage"
)

const maxLoginBody = 1 << 16

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// registerRawAPIRoutes mounts API routes that need the raw request or writer:
// cookies for login and multipart bodies for uploads.
func (s *Server) registerRawAPIRoutes() {
	s.mux.Handle("POST /api/auth/login", s.wrapRaw(s.apiLoginHandler))
	s.mux.Handle("POST /api/auth/logout", s.wrapRaw(s.apiLogoutHandler))
	s.mux.Handle("POST /api/upload", s.wrapRaw(s.apiUploadHandler))
}

func (s *Server) apiLoginHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ip := clientIPFromRequest(r)
	if !s.loginLimiter.Allow(ip) {
		writeJSON(w, stdhttp.StatusTooManyRequests, errorBody{Error: tooManyLoginsMessage})
		return
	}

	if !s.credentialsConfigured() {
		writeJSON(w, stdhttp.StatusInternalServerError, errorBody{Error: "Admin credentials are not configured"})
		return
	}

	var body loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxLoginBody)).Decode(&body); err != nil {
		writeJSON(w, stdhttp.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}

	if !s.checkCredentials(body.Email, body.Password) {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"ip": ip, "request_id": RequestIDFromContext(r.Context())}).Warn("admin login rejected")
		}
		writeJSON(w, stdhttp.StatusUnauthorized, errorBody{Error: invalidCredentialsMessage})
		return
	}

	s.loginLimiter.Reset(ip)
	if err := s.startSession(w, r); err != nil {
		s.recordError(r.Context(), err, "starting admin session", nil)
		writeJSON(w, stdhttp.StatusInternalServerError, errorBody{Error: errorFallbackMessage})
		return
	}

	writeJSON(w, stdhttp.StatusOK, map[string]bool{"success": true})
}

func (s *Server) apiLogoutHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if err := s.endSession(w, r); err != nil {
		s.recordError(r.Context(), err, "ending admin session", nil)
	}
	writeJSON(w, stdhttp.StatusOK, map[string]bool{"success": true})
}

func (s *Server) apiUploadHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !IsAdmin(r.Context()) {
		writeJSON(w, stdhttp.StatusUnauthorized, errorBody{Error: "Unauthorized"})
		return
	}

	uploaded, status, message := s.receiveUpload(w, r)
	if uploaded == nil {
		writeJSON(w, status, errorBody{Error: message})
		return
	}

	writeJSON(w, stdhttp.StatusOK, uploadResponse{Success: true, URL: uploaded.URL, Filename: uploaded.Filename})
}

// receiveUpload stores the multipart "file" field. On failure it returns the
// status and message to report.
func (s *Server) receiveUpload(w stdhttp.ResponseWriter, r *stdhttp.Request) (*storage.Uploaded, int, string) {
	if s.uploader == nil {
		return nil, stdhttp.StatusServiceUnavailable, "Image upload is not configured"
	}

	r.Body = stdhttp.MaxBytesReader(w, r.Body, storage.MaxUploadSize+1<<20)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *stdhttp.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, stdhttp.StatusBadRequest, "File too large. Maximum size is 5MB."
		}
		return nil, stdhttp.StatusBadRequest, "No file uploaded"
	}
	defer file.Close()

	uploaded, err := s.uploader.Upload(r.Context(), file)
	switch {
	case err == nil:
		return uploaded, stdhttp.StatusOK, ""
	case eris.Is(err, storage.ErrUnsupportedType):
		return nil, stdhttp.StatusBadRequest, "Invalid file type. Only images are allowed."
	case eris.Is(err, storage.ErrTooLarge):
		return nil, stdhttp.StatusBadRequest, "File too large. Maximum size is 5MB."
	case eris.Is(err, storage.ErrTooManyPixels):
		return nil, stdhttp.StatusBadRequest, "Image dimensions too large. Maximum is 40 megapixels."
	default:
		s.recordError(r.Context(), err, "uploading image", nil)
		return nil, stdhttp.StatusInternalServerError, "Failed to upload file"
	}
}
