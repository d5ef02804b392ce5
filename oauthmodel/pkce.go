package oauthmodel

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// VerifyCodeChallenge checks a PKCE code verifier against the stored challenge.
// When no challenge was stored the verifier must be empty as well.
func VerifyCodeChallenge(storedChallenge string, method CodeMethodType, verifier string) bool {
	if storedChallenge == "" {
		return verifier == ""
	}
	switch method {
	case CodeMethodTypeS256:
		return subtle.ConstantTimeCompare([]byte(S256Challenge(verifier)), []byte(storedChallenge)) == 1
	case CodeMethodTypeNone, "":
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(storedChallenge)) == 1
	}
	return false
}

// S256Challenge derives the S256 code challenge of a verifier.
func S256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
