package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/doctorsportal/portal/internal/platform/apperr"
)

// DefaultTokenTTL is the lifetime of an issued access token.
const DefaultTokenTTL = time.Hour

// Identity is the verified caller extracted from a bearer token.
type Identity struct {
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	// Now overrides the clock used for issuing and verifying. Tests only.
	Now func() time.Time
}

// TokenIssuer mints access tokens for an email.
type TokenIssuer interface {
	Issue(email string) (string, Identity, error)
}

// TokenVerifier turns an Authorization header into an Identity.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
	Authenticate(header string) (Identity, error)
}

// Tokens issues and verifies HS256 tokens signed with a single process secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	t := &Tokens{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}
	if t.ttl <= 0 {
		t.ttl = DefaultTokenTTL
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t, nil
}

// NormalizeEmail trims and lower-cases an email so that it compares equal to
// the value stored on users and bookings.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (t *Tokens) Issue(email string) (string, Identity, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", Identity{}, apperr.Validation("email is required")
	}

	iat := t.now().Truncate(time.Second)
	exp := iat.Add(t.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, Identity{Email: email, IssuedAt: iat, ExpiresAt: exp}, nil
}

// Verify checks the signature and expiry of token. Every failure maps to
// apperr.ErrForbidden; the underlying reason is wrapped for logging.
func (t *Tokens) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperr.ErrForbidden, err)
	}
	if !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: token is not valid", apperr.ErrForbidden)
	}

	email := claims.Email
	if email == "" {
		email = claims.Subject
	}
	if email == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", apperr.ErrForbidden)
	}

	id := Identity{Email: NormalizeEmail(email)}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Authenticate verifies an Authorization header value. A missing header is
// ErrUnauthenticated; a malformed header or bad token is ErrForbidden.
func (t *Tokens) Authenticate(header string) (Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Identity{}, fmt.Errorf("%w: missing authorization header", apperr.ErrUnauthenticated)
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return Identity{}, fmt.Errorf("%w: invalid authorization format", apperr.ErrForbidden)
	}
	return t.Verify(strings.TrimSpace(parts[1]))
}
