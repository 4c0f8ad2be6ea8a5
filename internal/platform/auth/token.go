package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenIssuer = "evansbakery-api"

var (
	// ErrTokenExpired signals that the provided session token has expired.
	ErrTokenExpired = errors.New("auth: session token expired")
	// ErrTokenInvalid signals that the provided session token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: session token invalid")
)

// TokenVerifier verifies bearer session tokens.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens for the admin surface.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

// TokenOption customises TokenService behaviour.
type TokenOption func(*TokenService)

// WithTokenIssuer overrides the issuer claim.
func WithTokenIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		issuer = strings.TrimSpace(issuer)
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithTokenClock injects a custom clock, primarily for tests.
func WithTokenClock(clock func() time.Time) TokenOption {
	return func(s *TokenService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewTokenService constructs a TokenService over the shared signing secret.
func NewTokenService(secret string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: session secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}

	service := &TokenService{
		secret: []byte(secret),
		issuer: defaultTokenIssuer,
		ttl:    ttl,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service, nil
}

// IssueToken signs a session token for the subject with the given role.
func (s *TokenService) IssueToken(subject, email, role string) (string, time.Time, error) {
	if s == nil {
		return "", time.Time{}, errors.New("auth: token service not initialised")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}

	now := s.clock().UTC()
	expiresAt := now.Add(s.ttl)
	claims := sessionClaims{
		Email: strings.TrimSpace(email),
		Role:  strings.ToLower(strings.TrimSpace(role)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates a session token, returning the identity it carries.
func (s *TokenService) VerifyToken(_ context.Context, token string) (*Identity, error) {
	if s == nil {
		return nil, errors.New("auth: token service not initialised")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &sessionClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return s.clock().UTC() }),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrTokenInvalid
	}

	identity := &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if role := strings.ToLower(strings.TrimSpace(claims.Role)); role != "" {
		identity.Roles = []string{role}
	}
	return identity, nil
}
