package auth

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokens() TokenService {
	return TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "chapterwatch-test",
		Duration: time.Hour,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	ts := testTokens()
	u := &User{ID: "u1", Username: "reader"}

	token, exp, err := ts.Sign(u)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := ts.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "reader", claims.Username)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _, err := testTokens().Sign(&User{ID: "u1", Username: "reader"})
	require.NoError(t, err)

	other := TokenService{Secret: []byte("different"), Issuer: "x", Duration: time.Hour}
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func newAuthRouter(t *testing.T) (*gin.Engine, TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	require.NoError(t, err)

	tokens := testTokens()
	h := NewHandler(NewRepo(db), tokens)

	router := gin.New()
	h.RegisterRoutes(router.Group("/auth"))
	router.GET("/protected", Middleware(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": MustGetClaims(c).Username})
	})
	return router, tokens
}

func post(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := post(router, "/auth/register", `{"username":"reader","password":"hunter2hunter2"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	// duplicate username
	w = post(router, "/auth/register", `{"username":"reader","password":"hunter2hunter2"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(router, "/auth/login", `{"username":"reader","password":"hunter2hunter2"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = post(router, "/auth/login", `{"username":"reader","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := post(router, "/auth/register", `{"username":"ab","password":"hunter2hunter2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(router, "/auth/register", `{"username":"reader","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMiddlewareGuardsRoute(t *testing.T) {
	router, tokens := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := tokens.Sign(&User{ID: "u1", Username: "reader"})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"reader"}`, w.Body.String())
}
