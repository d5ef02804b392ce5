package token

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/pkg/errors"
)

// Signer signs and verifies the JWTs of one tenant.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)
	// VerificationKey is a jwt.Keyfunc.
	VerificationKey(token *jwt.Token) (any, error)
	Method() jwt.SigningMethod
}

// HMACSigner implements Signer using symmetric HMAC-SHA256
type HMACSigner struct {
	secret []byte
}

func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{secret: []byte(secret)}
}

func (h *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

func (h *HMACSigner) VerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

func (h *HMACSigner) Method() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// RSASigner implements Signer using RS256 and publishes its public key as a JWK.
type RSASigner struct {
	keyID string
	key   *rsa.PrivateKey
}

func NewRSASigner(keyID string, key *rsa.PrivateKey) *RSASigner {
	if keyID == "" {
		keyID = KeyIDFor(&key.PublicKey)
	}
	return &RSASigner{keyID: keyID, key: key}
}

func (r *RSASigner) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = r.keyID
	signed, err := token.SignedString(r.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with RSA key")
	}
	return signed, nil
}

func (r *RSASigner) VerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return &r.key.PublicKey, nil
}

func (r *RSASigner) Method() jwt.SigningMethod {
	return jwt.SigningMethodRS256
}

func (r *RSASigner) JWKS() *JWKS {
	return &JWKS{Keys: []JWK{rsaJWK(r.keyID, &r.key.PublicKey)}}
}

// NewSignerForTenant builds the signer described by the tenant's stored key material.
func NewSignerForTenant(tenant *tenants.Tenant) (Signer, error) {
	switch tenant.SignerType {
	case tenants.SignerTypeHMAC, "":
		if tenant.HMACSecret == "" {
			return nil, errors.Errorf("tenant %s has no HMAC secret", tenant.ID)
		}
		return NewHMACSigner(tenant.HMACSecret), nil
	case tenants.SignerTypeRS256:
		if tenant.PrivateKeyPEM == "" {
			return nil, errors.Errorf("tenant %s has no private key", tenant.ID)
		}
		key, err := ParseRSAPrivateKeyPEM(tenant.PrivateKeyPEM)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load key for tenant %s", tenant.ID)
		}
		return NewRSASigner(tenant.KeyID, key), nil
	default:
		return nil, errors.Errorf("unsupported signer type: %s", tenant.SignerType)
	}
}

// EnsureTenantKeys generates key material for a tenant that has none yet. It reports
// whether the tenant was changed and needs saving.
func EnsureTenantKeys(tenant *tenants.Tenant) (bool, error) {
	switch tenant.SignerType {
	case tenants.SignerTypeHMAC, "":
		if tenant.HMACSecret != "" {
			return false, nil
		}
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return false, errors.Wrap(err, "failed to generate HMAC secret")
		}
		tenant.SignerType = tenants.SignerTypeHMAC
		tenant.HMACSecret = hex.EncodeToString(secret)
		return true, nil
	case tenants.SignerTypeRS256:
		if tenant.PrivateKeyPEM != "" {
			return false, nil
		}
		key, err := GenerateRSAKey(2048)
		if err != nil {
			return false, err
		}
		tenant.PrivateKeyPEM = EncodeRSAPrivateKeyPEM(key)
		if tenant.KeyID == "" {
			tenant.KeyID = KeyIDFor(&key.PublicKey)
		}
		return true, nil
	default:
		return false, errors.Errorf("unsupported signer type: %s", tenant.SignerType)
	}
}
