package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
)

const defaultSignatureHeader = "X-Signature"

// ErrSignatureMismatch indicates the request body does not match its signature.
var ErrSignatureMismatch = errors.New("auth: signature verification failed")

// HMACValidator verifies signed webhook deliveries from non-card providers.
// The signature is an HMAC-SHA256 of the raw request body, hex or base64 encoded.
type HMACValidator struct {
	secret          []byte
	signatureHeader string
}

// HMACOption customises the validator.
type HMACOption func(*HMACValidator)

// WithHMACHeader overrides the header carrying the signature.
func WithHMACHeader(header string) HMACOption {
	return func(v *HMACValidator) {
		header = strings.TrimSpace(header)
		if header != "" {
			v.signatureHeader = header
		}
	}
}

// NewHMACValidator builds a validator over the shared signing secret.
func NewHMACValidator(secret string, opts ...HMACOption) (*HMACValidator, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: webhook signing secret is required")
	}
	validator := &HMACValidator{
		secret:          []byte(secret),
		signatureHeader: defaultSignatureHeader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(validator)
		}
	}
	return validator, nil
}

// VerifyBody checks the signature against the raw payload.
func (v *HMACValidator) VerifyBody(body []byte, signature string) error {
	if v == nil || len(v.secret) == 0 {
		return errors.New("auth: hmac validator not initialised")
	}
	decoded, err := decodeSignature(signature)
	if err != nil {
		return err
	}
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write(body)
	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}

// RequireSignature enforces a valid body signature on the request. The body is
// restored so downstream handlers can read it again.
func (v *HMACValidator) RequireSignature() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil || len(v.secret) == 0 {
				respondAuthError(w, http.StatusServiceUnavailable, "verification_unavailable", "webhook signing secret not configured")
				return
			}

			signature := strings.TrimSpace(r.Header.Get(v.signatureHeader))
			if signature == "" {
				respondAuthError(w, http.StatusBadRequest, "signature_missing", "signature header missing")
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				respondAuthError(w, http.StatusBadRequest, "invalid_body", "unable to read body for signature verification")
				return
			}

			if err := v.VerifyBody(body, signature); err != nil {
				respondAuthError(w, http.StatusBadRequest, "signature_mismatch", "signature verification failed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, nil
}

func decodeSignature(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("auth: empty signature")
	}
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("auth: signature must be hex or base64 encoded")
}
