package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-engine/auth"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/tenants"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// tenantFromHost resolves the tenant from the subdomain of the configured base URL. Requests to
// the base host itself belong to the default tenant.
func (s *Server) tenantFromHost(ctx context.Context, host string) (*tenants.Tenant, error) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	baseHostName := s.config.GetBaseURL()
	if _, rest, ok := strings.Cut(baseHostName, "://"); ok {
		baseHostName = rest
	}
	baseHostName, _, _ = strings.Cut(baseHostName, "/")
	if h, _, err := net.SplitHostPort(baseHostName); err == nil {
		baseHostName = h
	}

	tenantID := strings.TrimSuffix(host, baseHostName)
	tenantID = strings.Trim(tenantID, ".")
	if tenantID == "" || tenantID == host {
		tenantID = s.config.GetDefaultTenantID()
	}

	t, err := s.auth.Repos().Tenants.Get(ctx, tenantID) // verify tenant exists
	if err != nil {
		return nil, apperrors.NotFound("Unknown tenant.", apperrors.ErrTenantNotFound)
	}
	return t, nil
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func requestInfo(r *http.Request) auth.RequestInfo {
	info := auth.RequestInfo{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Origin:    r.Header.Get("Origin"),
	}
	if c, err := r.Cookie(auth.SessionCookieName); err == nil {
		info.SessionID = c.Value
	}
	return info
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

// writeAPIError writes err as an OAuth2 error body with the status of its kind.
func writeAPIError(w http.ResponseWriter, err error) {
	code, description := errorBody(err)
	status := apperrors.StatusOf(err)
	if code == auth.CodeInvalidClient || code == "invalid_token" {
		status = http.StatusUnauthorized
	}
	writeJSONError(w, code, description, status)
}

func errorBody(err error) (code, description string) {
	var e *apperrors.Error
	if !apperrors.As(err, &e) || e.Kind == apperrors.KindTransient {
		return string(apperrors.KindTransient), "The server could not complete the request."
	}
	code = e.Code
	if code == "" {
		code = string(e.Kind)
	}
	description = e.Message
	if description == "" {
		description = e.Error()
	}
	return code, description
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
