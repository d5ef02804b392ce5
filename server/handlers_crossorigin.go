package server

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/jrsteele09/go-auth-engine/auth"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
)

// crossOriginBody is the JSON (or form) body of the embedded login endpoints.
type crossOriginBody struct {
	ClientID       string `json:"client_id"`
	Connection     string `json:"connection"`
	Realm          string `json:"realm"`
	CredentialType string `json:"credential_type"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	OTP            string `json:"otp"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
}

func decodeCrossOrigin(w http.ResponseWriter, r *http.Request) (crossOriginBody, error) {
	var body crossOriginBody
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
			return body, apperrors.Validation("", "The request body is not valid JSON.")
		}
		return body, nil
	}
	if err := r.ParseForm(); err != nil {
		return body, apperrors.Validation("", "Invalid form data.")
	}
	body = crossOriginBody{
		ClientID:       r.PostForm.Get("client_id"),
		Connection:     r.PostForm.Get("connection"),
		Realm:          r.PostForm.Get("realm"),
		CredentialType: r.PostForm.Get("credential_type"),
		Username:       r.PostForm.Get("username"),
		Password:       r.PostForm.Get("password"),
		OTP:            r.PostForm.Get("otp"),
		Email:          r.PostForm.Get("email"),
		PhoneNumber:    r.PostForm.Get("phone_number"),
	}
	return body, nil
}

func (b crossOriginBody) request(tenantID string, r *http.Request) auth.CrossOriginRequest {
	realm := b.Realm
	if realm == "" {
		realm = b.Connection
	}
	username := b.Username
	if username == "" {
		username = b.Email
	}
	if username == "" {
		username = b.PhoneNumber
	}
	return auth.CrossOriginRequest{
		TenantID:       tenantID,
		ClientID:       b.ClientID,
		Origin:         r.Header.Get("Origin"),
		CredentialType: b.CredentialType,
		Realm:          realm,
		Username:       username,
		Password:       b.Password,
		OTP:            b.OTP,
		IP:             clientIP(r),
	}
}

// Preflight answers CORS preflights of the cross-origin API. The origin itself is checked
// against the client's web origins by the request that follows.
func (s *Server) Preflight() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && w.Header().Get("Access-Control-Allow-Origin") == "" {
			allowOrigin(w, origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", s.config.GetAllowedHeaders())
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
	}
}

// PasswordlessStart sends a one-time code for embedded login (POST /passwordless/start)
func (s *Server) PasswordlessStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.tenantFromHost(r.Context(), r.Host)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		body, err := decodeCrossOrigin(w, r)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		req := body.request(tenant.ID, r)
		if err := s.auth.StartPasswordless(r.Context(), req); err != nil {
			writeAPIError(w, err)
			return
		}
		if req.Origin != "" {
			allowOrigin(w, req.Origin)
		}
		writeJSON(w, http.StatusOK, map[string]string{})
	}
}

// CrossOriginAuthenticate exchanges a credential for a login ticket (POST /co/authenticate)
func (s *Server) CrossOriginAuthenticate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.tenantFromHost(r.Context(), r.Host)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		body, err := decodeCrossOrigin(w, r)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		req := body.request(tenant.ID, r)
		res, err := s.auth.CrossOriginAuthenticate(r.Context(), req)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		allowOrigin(w, req.Origin)
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, res)
	}
}

func allowOrigin(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
}
