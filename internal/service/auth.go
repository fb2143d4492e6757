package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"onlinemis-backend/internal/sessionstore"
	"strings"

	"github.com/mazen160/go-random"
)

const sessionIdLength = 48

// session is an authenticated caller.
type session struct {
	Id       string
	Upstream onlinemis.UpstreamSession
}

// identity is what cache entries of a session are keyed by.
func (s session) identity() string {
	if s.Upstream.Identity.NRP != "" {
		return s.Upstream.Identity.NRP
	}
	return s.Upstream.Identity.Name
}

type authenticatedHandler func(w http.ResponseWriter, r *http.Request, sess session)

// sessionId reads the session id from the session cookie, or from an
// `authorization: Bearer <id>` header for non browser callers.
func (s Service) sessionId(r *http.Request) string {
	cookie, err := r.Cookie(s.opts.SessionCookie)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if found {
		return strings.TrimSpace(token)
	}
	return ""
}

func (s Service) authenticated(handler authenticatedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := s.sessionId(r)
		if id == "" {
			writeUnauthorized(w, "not logged in")
			return
		}
		upstream, err := s.sessions.Get(r.Context(), id)
		if errors.Is(err, sessionstore.ErrNotFound) {
			s.clearCookie(w)
			writeUnauthorized(w, "not logged in")
			return
		}
		if err != nil {
			s.tel.ReportBroken(report_service_session, err)
			writeError(w, http.StatusInternalServerError, "internal error", err)
			return
		}
		handler(w, r, session{Id: id, Upstream: upstream})
	}
}

func (s Service) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s Service) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// teardown forgets a session whose upstream token stopped working, along
// with everything cached for its identity.
func (s Service) teardown(ctx context.Context, sess session) {
	err := s.sessions.Destroy(ctx, sess.Id)
	if err != nil {
		s.tel.ReportBroken(report_service_session, err)
	}
	err = s.cache.InvalidateIdentity(ctx, sess.identity())
	if err != nil {
		s.tel.ReportWarning(report_service_cache, err)
	}
}

// fail writes err to the caller, tearing the session down first if the
// upstream session has expired.
func (s Service) fail(w http.ResponseWriter, r *http.Request, sess *session, err error) {
	if errors.Is(err, onlinemis.ErrSessionExpired) {
		if sess != nil {
			s.teardown(r.Context(), *sess)
		}
		s.clearCookie(w)
		writeUnauthorized(w, "session expired")
		return
	}

	status, message := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.tel.ReportBroken(report_service_request, r.URL.Path, err)
	}
	writeError(w, status, message, err)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User string `json:"user"`
	NRP  string `json:"nrp"`
}

func (s Service) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		s.fail(w, r, nil, badRequest("decode body: %w", err))
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	err = s.validate.Struct(req)
	if err != nil {
		s.fail(w, r, nil, err)
		return
	}

	upstream, err := s.client.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, nil, err)
		return
	}

	id, err := random.String(sessionIdLength)
	if err != nil {
		s.fail(w, r, nil, err)
		return
	}
	err = s.sessions.Set(r.Context(), id, upstream)
	if err != nil {
		s.tel.ReportBroken(report_service_session, err)
		s.fail(w, r, nil, err)
		return
	}

	s.setCookie(w, id)
	writeData(w, loginResponse{
		User: upstream.Identity.Name,
		NRP:  upstream.Identity.NRP,
	})
}

// Logout forgets the session along with everything cached for its identity.
func (s Service) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.sessionId(r)
	if id != "" {
		upstream, err := s.sessions.Get(ctx, id)
		found := err == nil
		if err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
			s.tel.ReportBroken(report_service_session, err)
			s.fail(w, r, nil, err)
			return
		}

		err = s.sessions.Destroy(ctx, id)
		if err != nil {
			s.tel.ReportBroken(report_service_session, err)
			s.fail(w, r, nil, err)
			return
		}

		if found {
			sess := session{Id: id, Upstream: upstream}
			err = s.cache.InvalidateIdentity(ctx, sess.identity())
			if err != nil {
				s.tel.ReportWarning(report_service_cache, err)
			}
		}
	}
	s.clearCookie(w)
	writeData(w, nil)
}

func (s Service) InvalidateCache(w http.ResponseWriter, r *http.Request, sess session) {
	err := s.cache.InvalidateIdentity(r.Context(), sess.identity())
	if err != nil {
		s.tel.ReportBroken(report_service_cache, err)
		s.fail(w, r, &sess, err)
		return
	}
	writeData(w, nil)
}
