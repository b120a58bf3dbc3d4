package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTripThroughCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionToken(rec, "tok-1")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, "tok-1", GetSessionToken(req))
}

func TestSessionHeaderWinsOverCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "from-cookie"})
	req.Header.Set(SessionHeader, "from-header")

	assert.Equal(t, "from-header", GetSessionToken(req))
}

func TestClearSessionTokenExpiresCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSessionToken(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestMissingSessionToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", GetSessionToken(req))
}
