package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/database/dbtest"
	"github.com/vesseleye/internal/models"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func createUser(t *testing.T, db *gorm.DB, name string, role models.Role, active bool) *models.User {
	t.Helper()
	u := &models.User{Username: name, Role: role, Active: true}
	require.NoError(t, u.SetPassword("s3cret"))
	require.NoError(t, db.Create(u).Error)
	if !active {
		require.NoError(t, db.Model(u).Update("active", false).Error)
	}
	return u
}

func newRouter(a *Authenticator) *gin.Engine {
	r := gin.New()
	g := r.Group("/", a.Middleware())
	g.GET("/fleet", RequirePermission(models.ActionViewFleet), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentPrincipal(c).Username)
	})
	g.POST("/fetcher", RequirePermission(models.ActionControlFetcher), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v[0])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestLogin(t *testing.T) {
	db := dbtest.New(t)
	createUser(t, db, "alice", models.RoleSupervisor, true)
	createUser(t, db, "bob", models.RoleViewer, false)
	a := NewAuthenticator(db, "secret", nil, nil)
	ctx := context.Background()

	token, user, err := a.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, models.RoleSupervisor, user.Role)

	_, _, err = a.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = a.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = a.Login(ctx, "bob", "s3cret")
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestMiddlewareBearerToken(t *testing.T) {
	db := dbtest.New(t)
	viewer := createUser(t, db, "vera", models.RoleViewer, true)
	a := NewAuthenticator(db, "secret", nil, nil)
	r := newRouter(a)

	token, err := a.GenerateToken(viewer)
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/fleet", bearer(token))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vera", w.Body.String())

	w = do(r, http.MethodPost, "/fetcher", bearer(token))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/fleet", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := NewAuthenticator(db, "other-secret", nil, nil).GenerateToken(viewer)
	require.NoError(t, err)
	w = do(r, http.MethodGet, "/fleet", bearer(forged))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	db := dbtest.New(t)
	u := createUser(t, db, "alice", models.RoleAdmin, true)
	clk := clock.NewFake(time.Now())
	a := NewAuthenticator(db, "secret", nil, clk)
	token, err := a.GenerateToken(u)
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)
	w := do(newRouter(a), http.MethodGet, "/fleet", bearer(token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRejectsDeactivatedUser(t *testing.T) {
	db := dbtest.New(t)
	u := createUser(t, db, "alice", models.RoleAdmin, true)
	a := NewAuthenticator(db, "secret", nil, nil)
	token, err := a.GenerateToken(u)
	require.NoError(t, err)
	require.NoError(t, db.Model(u).Update("active", false).Error)

	w := do(newRouter(a), http.MethodGet, "/fleet", bearer(token))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMiddlewareAPIKey(t *testing.T) {
	db := dbtest.New(t)
	hash, err := HashAPIKey("cli-key")
	require.NoError(t, err)
	a := NewAuthenticator(db, "", []string{hash}, nil)
	r := newRouter(a)

	w := do(r, http.MethodPost, "/fetcher", http.Header{APIKeyHeader: []string{"cli-key"}})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodPost, "/fetcher", http.Header{APIKeyHeader: []string{"guess"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/fleet", bearer("anything"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
