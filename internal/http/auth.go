package http

import (
	"crypto/rand"
	"crypto/subtle"
	stdhttp "net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/rotisserie/eris"
)

const (
	sessionName     = "admin_session"
	sessionAdminKey = "admin"
	sessionEmailKey = "email"
	sessionMaxAge   = 24 * 60 * 60
	adminKeyHeader  = "X-Admin-Key"

	loginAttempts        = 5
	loginRefillPerSecond = 5.0 / (15 * 60)

	invalidCredentialsMessage = "이메일 또는 비밀번호가 올바르지 않습니다."
	tooManyLoginsMessage      = "로그인 시도가 너무 많습니다. 잠시 후 다시 시도해 주세요."
)

// newSessionStore creates the cookie store holding admin sessions. Without a
// configured secret a random key is used, so sessions end on restart.
func newSessionStore(secret string, secure bool) (*sessions.CookieStore, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, eris.Wrap(err, "generating session key")
		}
	}

	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: stdhttp.SameSiteLaxMode,
	}
	return store, nil
}

// authenticated reports whether the request carries admin rights through a
// session cookie or the admin key header.
func (s *Server) authenticated(r *stdhttp.Request) bool {
	if s.auth.OpenAccess {
		return true
	}

	if key := r.Header.Get(adminKeyHeader); key != "" && s.auth.SecretKey != "" {
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.auth.SecretKey)) == 1 {
			return true
		}
	}

	session, err := s.sessions.Get(r, sessionName)
	if err != nil || session == nil {
		return false
	}
	admin, _ := session.Values[sessionAdminKey].(bool)
	return admin
}

func (s *Server) credentialsConfigured() bool {
	return s.auth.Email != "" && s.auth.Password != ""
}

func (s *Server) checkCredentials(email, password string) bool {
	emailOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(email)), []byte(s.auth.Email)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.auth.Password)) == 1
	return emailOK && passwordOK
}

func (s *Server) startSession(w stdhttp.ResponseWriter, r *stdhttp.Request) error {
	session, _ := s.sessions.Get(r, sessionName)
	if session == nil {
		session = sessions.NewSession(s.sessions, sessionName)
		session.Options = s.sessions.Options
	}
	session.Values[sessionAdminKey] = true
	session.Values[sessionEmailKey] = s.auth.Email
	if err := session.Save(r, w); err != nil {
		return eris.Wrap(err, "saving admin session")
	}
	return nil
}

func (s *Server) endSession(w stdhttp.ResponseWriter, r *stdhttp.Request) error {
	session, _ := s.sessions.Get(r, sessionName)
	if session == nil {
		return nil
	}
	session.Values = map[any]any{}
	opts := *s.sessions.Options
	opts.MaxAge = -1
	session.Options = &opts
	if err := session.Save(r, w); err != nil {
		return eris.Wrap(err, "clearing admin session")
	}
	return nil
}
