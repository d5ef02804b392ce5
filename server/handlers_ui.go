package server

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-auth-engine/auth"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/screens"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/pkg/errors"
)

// noticeCookieName carries a one-shot notice across the redirect that follows a successful
// screen submission.
const noticeCookieName = "auth_notice"

var errCSRF = errors.New("csrf token mismatch")

// loginFlow loads the tenant and the login session named by the state query parameter.
func (s *Server) loginFlow(r *http.Request) (*tenants.Tenant, *screens.FlowContext, error) {
	ctx := r.Context()
	tenant, err := s.tenantFromHost(ctx, r.Host)
	if err != nil {
		return nil, nil, err
	}
	ls, err := s.auth.LoginSession(ctx, tenant.ID, r.URL.Query().Get("state"))
	if err != nil {
		return tenant, nil, err
	}
	return tenant, &screens.FlowContext{
		Service:      s.auth,
		LoginSession: ls,
		Request:      requestInfo(r),
		Text:         textFor(r, tenant, ls),
		Query:        r.URL.Query(),
		FormID:       r.PathValue("formId"),
		NodeID:       r.PathValue("nodeId"),
	}, nil
}

// ScreenGet renders a login screen (GET /u/{screen}?state=)
func (s *Server) ScreenGet() http.HandlerFunc {
	return s.renderFlowScreen(func(r *http.Request) string {
		return r.PathValue("screen")
	})
}

// ScreenPost submits a login screen (POST /u/{screen}?state=)
func (s *Server) ScreenPost() http.HandlerFunc {
	return s.submitFlowScreen(func(r *http.Request) string {
		return r.PathValue("screen")
	})
}

// FormNodeGet renders a node of a post-login hook form
func (s *Server) FormNodeGet() http.HandlerFunc {
	return s.renderFlowScreen(func(*http.Request) string {
		return auth.ScreenFormNode
	})
}

func (s *Server) FormNodePost() http.HandlerFunc {
	return s.submitFlowScreen(func(*http.Request) string {
		return auth.ScreenFormNode
	})
}

func (s *Server) renderFlowScreen(screenOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, fc, err := s.loginFlow(r)
		if err != nil {
			s.renderError(w, err, textFor(r, tenant, nil))
			return
		}
		v, err := s.screens.Render(r.Context(), screenOf(r), fc)
		if err != nil {
			s.renderError(w, err, fc.Text)
			return
		}
		if notice := takeNotice(w, r); notice != "" {
			v.Notice = notice
		}
		s.renderScreen(w, http.StatusOK, tenant, v)
	}
}

func (s *Server) submitFlowScreen(screenOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, fc, err := s.loginFlow(r)
		if err != nil {
			s.renderError(w, err, textFor(r, tenant, nil))
			return
		}
		if err := r.ParseForm(); err != nil {
			s.renderError(w, apperrors.Validation("", "Invalid form data."), fc.Text)
			return
		}
		if !validCSRF(r.PostForm.Get(screens.CSRFField), fc.LoginSession.CSRFToken) {
			s.renderError(w, apperrors.Denied("Invalid form submission. Please start again.", errCSRF), fc.Text)
			return
		}
		res := s.screens.Submit(r.Context(), screenOf(r), fc, r.PostForm)
		s.writeResult(w, r, tenant, fc, res)
	}
}

// CompleteHook resumes a login after the hook it was waiting on finished (GET /u/complete?state=)
func (s *Server) CompleteHook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, fc, err := s.loginFlow(r)
		if err != nil {
			s.renderError(w, err, textFor(r, tenant, nil))
			return
		}
		s.writeResult(w, r, tenant, fc, s.auth.CompleteHook(r.Context(), fc.LoginSession, fc.Request))
	}
}

// ResumeContinuation returns from an account continuation (GET /u/continue?state=)
func (s *Server) ResumeContinuation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, fc, err := s.loginFlow(r)
		if err != nil {
			s.renderError(w, err, textFor(r, tenant, nil))
			return
		}
		s.writeResult(w, r, tenant, fc, s.auth.ResumeContinuation(r.Context(), fc.LoginSession, fc.Request))
	}
}

// MagicLink redeems the code of an emailed link (GET /passwordless/verify_redirect?state=&verification_code=)
func (s *Server) MagicLink() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, fc, err := s.loginFlow(r)
		if err != nil {
			s.renderError(w, err, textFor(r, tenant, nil))
			return
		}
		code := r.URL.Query().Get("verification_code")
		s.writeResult(w, r, tenant, fc, s.auth.VerifyCode(r.Context(), fc.LoginSession, code, fc.Request))
	}
}

// writeResult turns an engine result into a response. fc is nil outside of a login session.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, tenant *tenants.Tenant, fc *screens.FlowContext, res auth.Result) {
	for _, c := range res.Cookies {
		http.SetCookie(w, c)
	}

	text := textFor(r, tenant, nil)
	if fc != nil {
		text = fc.Text
	}

	switch res.Kind {
	case auth.ResultRedirect:
		s.setNotice(w, res.Notice)
		http.Redirect(w, r, res.URL, redirectStatus(r))
	case auth.ResultDocument:
		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(res.Document))
	case auth.ResultContinue:
		if fc == nil {
			s.renderError(w, continueError(res), text)
			return
		}
		if res.Err == nil {
			s.setNotice(w, res.Notice)
			target := auth.ScreenPath(res.Screen, fc.LoginSession.ID)
			if res.Screen == auth.ScreenFormNode {
				target = auth.FormNodePath(fc.FormID, fc.NodeID, fc.LoginSession.ID)
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		v, err := s.screens.RenderResult(r.Context(), fc, res)
		if err != nil {
			s.renderError(w, err, text)
			return
		}
		s.renderScreen(w, apperrors.StatusOf(res.Err), tenant, v)
	default:
		err := res.Err
		if err == nil {
			err = apperrors.Transient("Something went wrong, please try again later.", errors.New("failed result without error"))
		}
		s.renderError(w, err, text)
	}
}

func continueError(res auth.Result) error {
	if res.Err != nil {
		return res.Err
	}
	return apperrors.NotFound("Your session has expired. Please start again.", apperrors.ErrSessionExpired)
}

// redirectStatus answers form posts with 303 so the browser follows up with a GET.
func redirectStatus(r *http.Request) int {
	if r.Method == http.MethodPost {
		return http.StatusSeeOther
	}
	return http.StatusFound
}

func validCSRF(submitted, expected string) bool {
	if submitted == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(expected)) == 1
}

func (s *Server) setNotice(w http.ResponseWriter, notice string) {
	if notice == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     noticeCookieName,
		Value:    url.QueryEscape(notice),
		Path:     "/u/",
		MaxAge:   int((time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeNotice reads and clears the notice cookie.
func takeNotice(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(noticeCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: noticeCookieName, Value: "", Path: "/u/", MaxAge: -1, HttpOnly: true})
	notice, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return notice
}
