package auth

import (
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-auth-engine/sessions"
)

// Screen identifiers. Every screen is served under /u/{screen}?state=.
const (
	ScreenIdentifier    = "login"
	ScreenEnterCode     = "enter-code"
	ScreenEnterPassword = "enter-password"
	ScreenResetPassword = "reset-password"
	ScreenImpersonate   = "impersonate"
	ScreenAccount       = "account"
	ScreenChangeEmail   = "change-email"
	ScreenFormNode      = "form-node"
)

// SessionCookieName is the cookie holding the long-lived session id.
const SessionCookieName = "auth_session"

// ResultKind says how the transport must act on a Result.
type ResultKind int

const (
	// ResultContinue renders Screen. A non-nil Err is shown on the screen.
	ResultContinue ResultKind = iota
	// ResultRedirect sends the browser to URL.
	ResultRedirect
	// ResultDocument writes Document as an HTML page (form_post and web_message).
	ResultDocument
	// ResultFail renders an error page for Err. Used when the client cannot be told.
	ResultFail
)

// Result is the outcome of one flow step.
type Result struct {
	Kind     ResultKind
	Screen   string
	Notice   string
	URL      string
	Document string
	Cookies  []*http.Cookie
	// Err is the failure of the step. On a redirect or document it is the error that was
	// delivered to the client through its response mode.
	Err error
}

func Continue(screen string) Result {
	return Result{Kind: ResultContinue, Screen: screen}
}

// ContinueWithError re-renders screen with a field-scoped error.
func ContinueWithError(screen string, err error) Result {
	return Result{Kind: ResultContinue, Screen: screen, Err: err}
}

func Redirect(u string, cookies ...*http.Cookie) Result {
	return Result{Kind: ResultRedirect, URL: u, Cookies: cookies}
}

func Document(html string, cookies ...*http.Cookie) Result {
	return Result{Kind: ResultDocument, Document: html, Cookies: cookies}
}

func Fail(err error) Result {
	return Result{Kind: ResultFail, Err: err}
}

// ScreenPath returns the path of screen bound to the login session state.
func ScreenPath(screen, state string) string {
	return "/u/" + screen + "?state=" + url.QueryEscape(state)
}

// FormNodePath returns the path of a hook form node bound to the login session state.
func FormNodePath(formID, nodeID, state string) string {
	return "/u/forms/" + url.PathEscape(formID) + "/nodes/" + url.PathEscape(nodeID) + "?state=" + url.QueryEscape(state)
}

func (as *AuthorizationService) sessionCookie(s *sessions.Session) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.Expiry(),
		HttpOnly: true,
		Secure:   as.secureCookies,
		SameSite: as.sameSite(),
	}
}

func (as *AuthorizationService) clearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   as.secureCookies,
		SameSite: as.sameSite(),
	}
}

// SameSite=None is only accepted on Secure cookies.
func (as *AuthorizationService) sameSite() http.SameSite {
	if as.secureCookies {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
