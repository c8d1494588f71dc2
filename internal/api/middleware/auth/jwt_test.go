package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := JWTMiddleware(secret)(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	return rec, c, handler(c)
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	token, err := GenerateJWT(42, "alice", secret, 1)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, c, err := serve(t, req)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), c.Get(ContextUserID))
	assert.Equal(t, "alice", c.Get(ContextUsername))
}

func TestMiddlewareAcceptsQueryToken(t *testing.T) {
	token, err := GenerateJWT(7, "", secret, 1)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	_, c, err := serve(t, req)

	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Get(ContextUserID))
}

func TestMiddlewareRejects(t *testing.T) {
	wrongKey, err := GenerateJWT(42, "alice", "other-secret", 1)
	require.NoError(t, err)
	expired, err := GenerateJWT(42, "alice", secret, -1)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":   "",
		"garbage":   "Bearer not-a-token",
		"wrong key": "Bearer " + wrongKey,
		"expired":   "Bearer " + expired,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			_, _, err := serve(t, req)

			var httpErr *echo.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		})
	}
}

func TestParseTokenRejectsNonHMAC(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(raw, secret)
	assert.Error(t, err)
}

func TestParseTokenNeedsUserID(t *testing.T) {
	token, err := GenerateJWT(0, "ghost", secret, 1)
	require.NoError(t, err)

	_, err = ParseToken(token, secret)
	assert.EqualError(t, err, "token has no user id")
}
