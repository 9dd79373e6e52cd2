package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evotar/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, true)
	require.NoError(t, err)
	return codec
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := newCodec(t)
	dept := 2
	user := types.User{
		ID:           uuid.New(),
		StudentID:    "2024-0001",
		Name:         "Ada",
		Email:        "ada@example.edu",
		Role:         types.RoleStaff,
		DepartmentID: &dept,
	}

	token, err := codec.Encode(ForUser(user, "0xabc"))
	require.NoError(t, err)

	got := codec.Decode(token)
	assert.True(t, got.IsLoggedIn)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, "2024-0001", got.StudentID)
	assert.Equal(t, types.RoleStaff, got.Role)
	assert.Equal(t, &dept, got.DepartmentID)
	assert.Equal(t, "0xabc", got.WalletAddress)
	assert.True(t, got.IsStaff())
	assert.False(t, got.IsAdmin())
}

// hs256 signs an arbitrary payload so tests can feed non-JSON claims.
func hs256(payload string) string {
	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." + enc.EncodeToString([]byte(payload))
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(signingInput))
	return signingInput + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestDecodeReturnsAnonymous(t *testing.T) {
	codec := newCodec(t)

	missingFlag, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   uuid.NewString(),
		"role": types.RoleAdmin,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"isLoggedIn": true,
		"id":         uuid.NewString(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"absent":             "",
		"malformed json":     hs256(`{"isLoggedIn":true,"id":`),
		"missing isLoggedIn": missingFlag,
		"garbage":            "not-a-token",
		"wrong key":          wrongKey,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got := codec.Decode(raw)
			assert.Equal(t, Session{}, got)
			assert.False(t, got.IsLoggedIn)
		})
	}
}

func TestDecodeExpired(t *testing.T) {
	codec := newCodec(t)
	codec.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	token, err := codec.Encode(Session{IsLoggedIn: true, ID: uuid.New(), UserID: uuid.New()})
	require.NoError(t, err)

	codec.now = time.Now
	assert.False(t, codec.Decode(token).IsLoggedIn)
}

func TestCookieAttributes(t *testing.T) {
	codec := newCodec(t)
	cookie := codec.Cookie("tok")

	assert.Equal(t, CookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)
	assert.Equal(t, -1, codec.ClearCookie().MaxAge)
}

func TestMiddlewareAttachesSession(t *testing.T) {
	codec := newCodec(t)
	userID := uuid.New()
	token, err := codec.Encode(Session{IsLoggedIn: true, ID: userID, UserID: userID, Role: types.RoleVoter})
	require.NoError(t, err)

	var seen Session
	handler := codec.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(codec.Cookie(token))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, seen.IsLoggedIn)
	assert.Equal(t, userID, seen.ID)
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec("", false)
	assert.Error(t, err)
}
