// Package session gives each browser an anonymous owner id carried in a signed cookie.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CookieName is the session cookie.
const CookieName = "pp_session"

// DefaultTTL is how long an owner cookie stays valid without a visit.
const DefaultTTL = 365 * 24 * time.Hour

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = stderrors.New("invalid session token")

// Claims identify the anonymous owner.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"owner_id"`
}

type ctxKey struct{}

type newOwnerKey struct{}

// Manager issues and verifies owner tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithSecureCookie marks the cookie Secure, for HTTPS deployments.
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// WithLogger sets the manager's logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// withClock overrides time.Now in tests.
func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager signing with secret (HS256).
func NewManager(secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, stderrors.New("session secret is required")
	}
	m := &Manager{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GenerateSecret returns a random 32-byte hex secret.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Issue signs a token for owner.
func (m *Manager) Issue(owner string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		OwnerID: owner,
	})
	return token.SignedString(m.secret)
}

// Parse verifies a token and returns its claims.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.OwnerID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware attaches the request's owner id to its context. Requests without
// a valid cookie get a fresh owner, marked so IsNewOwner reports true. Cookies
// past half their lifetime are renewed.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, renew, fresh := m.ownerFromRequest(r)
		if renew {
			if err := m.setCookie(w, owner); err != nil {
				m.logger.Error("issue session failed", zap.Error(err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
		}
		ctx := WithOwner(r.Context(), owner)
		if fresh {
			ctx = context.WithValue(ctx, newOwnerKey{}, true)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) ownerFromRequest(r *http.Request) (owner string, renew, fresh bool) {
	cookie, err := r.Cookie(CookieName)
	if err == nil {
		claims, err := m.Parse(cookie.Value)
		if err == nil {
			remaining := claims.ExpiresAt.Sub(m.now())
			return claims.OwnerID, remaining < m.ttl/2, false
		}
		m.logger.Debug("rejected session cookie", zap.Error(err))
	}
	return uuid.NewString(), true, true
}

func (m *Manager) setCookie(w http.ResponseWriter, owner string) error {
	token, err := m.Issue(owner)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// WithOwner returns a context carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ctxKey{}, owner)
}

// IsNewOwner reports whether Middleware minted the context's owner for this
// request. Such an owner has nothing stored yet.
func IsNewOwner(ctx context.Context) bool {
	fresh, _ := ctx.Value(newOwnerKey{}).(bool)
	return fresh
}

// OwnerFromContext returns the owner set by Middleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ctxKey{}).(string)
	return owner, ok && owner != ""
}
