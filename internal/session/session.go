// Package session carries the signed session cookie and the per-request
// session value derived from it.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/evotar/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CookieName = "session"
	MaxAge     = 7 * 24 * time.Hour
)

// Session is the identity attached to a request. The zero value is an
// anonymous visitor.
type Session struct {
	IsLoggedIn    bool      `json:"isLoggedIn"`
	ID            uuid.UUID `json:"id,omitzero"`
	UserID        uuid.UUID `json:"userId,omitzero"`
	StudentID     string    `json:"studentId,omitempty"`
	Name          string    `json:"name,omitempty"`
	Email         string    `json:"email,omitempty"`
	Role          string    `json:"role,omitempty"`
	DepartmentID  *int      `json:"departmentId,omitempty"`
	WalletAddress string    `json:"walletAddress,omitempty"`
}

// ForUser builds a logged-in session for the user.
func ForUser(user types.User, walletAddress string) Session {
	return Session{
		IsLoggedIn:    true,
		ID:            user.ID,
		UserID:        user.ID,
		StudentID:     user.StudentID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		DepartmentID:  user.DepartmentID,
		WalletAddress: walletAddress,
	}
}

func (s Session) IsAdmin() bool {
	return s.IsLoggedIn && s.Role == types.RoleAdmin
}

func (s Session) IsStaff() bool {
	return s.IsLoggedIn && types.IsStaff(s.Role)
}

type claims struct {
	// IsLoggedIn is a pointer so a token without the field is rejected.
	IsLoggedIn    *bool  `json:"isLoggedIn,omitempty"`
	ID            string `json:"id,omitempty"`
	UserID        string `json:"userId,omitempty"`
	StudentID     string `json:"studentId,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
	DepartmentID  *int   `json:"departmentId,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session cookies with HS256.
type Codec struct {
	secret []byte
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, secure bool) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	return &Codec{
		secret: []byte(secret),
		secure: secure,
		ttl:    MaxAge,
		now:    time.Now,
	}, nil
}

// Encode returns the signed token for s.
func (c *Codec) Encode(s Session) (string, error) {
	now := c.now()
	loggedIn := s.IsLoggedIn
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		IsLoggedIn:    &loggedIn,
		ID:            s.ID.String(),
		UserID:        s.UserID.String(),
		StudentID:     s.StudentID,
		Name:          s.Name,
		Email:         s.Email,
		Role:          s.Role,
		DepartmentID:  s.DepartmentID,
		WalletAddress: s.WalletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	})
	return token.SignedString(c.secret)
}

// Decode never fails: an absent, malformed, expired or incomplete token
// yields an anonymous session.
func (c *Codec) Decode(raw string) Session {
	if raw == "" {
		return Session{}
	}

	var parsed claims
	token, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil || !token.Valid {
		return Session{}
	}
	if parsed.IsLoggedIn == nil || !*parsed.IsLoggedIn {
		return Session{}
	}

	id, err := uuid.Parse(parsed.ID)
	if err != nil {
		return Session{}
	}
	userID, err := uuid.Parse(parsed.UserID)
	if err != nil {
		userID = id
	}

	return Session{
		IsLoggedIn:    true,
		ID:            id,
		UserID:        userID,
		StudentID:     parsed.StudentID,
		Name:          parsed.Name,
		Email:         parsed.Email,
		Role:          parsed.Role,
		DepartmentID:  parsed.DepartmentID,
		WalletAddress: parsed.WalletAddress,
	}
}

// Cookie wraps a signed token in the session cookie.
func (c *Codec) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie expires the session cookie.
func (c *Codec) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// FromRequest decodes the request's session cookie.
func (c *Codec) FromRequest(r *http.Request) Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return Session{}
	}
	return c.Decode(cookie.Value)
}

// Middleware attaches the decoded session to every request context.
func (c *Codec) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithSession(r.Context(), c.FromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type sessionContextKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext returns the request's session, or an anonymous one.
func FromContext(ctx context.Context) Session {
	if ctx == nil {
		return Session{}
	}
	s, _ := ctx.Value(sessionContextKey{}).(Session)
	return s
}
