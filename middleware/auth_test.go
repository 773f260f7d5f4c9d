package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudapp/socialforum/models"
	"github.com/cloudapp/socialforum/services"
	"github.com/cloudapp/socialforum/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret-for-middleware-tests")
	os.Setenv("S3_BUCKET", "test-bucket")
	gin.SetMode(gin.TestMode)
	utils.Sugar = zap.NewNop().Sugar()
	os.Exit(m.Run())
}

type fakeUserFinder struct {
	users map[string]*models.User
}

func (f *fakeUserFinder) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	return nil, services.ErrNotFound
}

// gateRequest runs one request through the authentication gate and returns
// the principal the handler observed.
func gateRequest(t *testing.T, finder UserFinder, authHeader string) *Principal {
	t.Helper()

	var seen *Principal
	r := gin.New()
	r.Use(Authenticate(finder))
	r.GET("/probe", func(ctx *gin.Context) {
		seen = CurrentPrincipal(ctx)
		ctx.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return seen
}

func TestAuthenticateValidToken(t *testing.T) {
	finder := &fakeUserFinder{users: map[string]*models.User{
		"alice": {ID: 42, Username: "alice", Role: models.RoleAdmin},
	}}

	token, err := utils.GenerateToken("alice", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	p := gateRequest(t, finder, "Bearer "+token)
	require.NotNil(t, p)
	assert.Equal(t, uint(42), p.UserID)
	assert.Equal(t, "alice", p.Subject)
	assert.Equal(t, models.RoleAdmin, p.Role)
	assert.True(t, p.IsAdmin())
}

func TestAuthenticateNoHeader(t *testing.T) {
	finder := &fakeUserFinder{users: map[string]*models.User{}}
	assert.Nil(t, gateRequest(t, finder, ""))
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	finder := &fakeUserFinder{users: map[string]*models.User{}}

	for _, header := range []string{"Bearer", "Token abc", "Bearer   "} {
		assert.Nil(t, gateRequest(t, finder, header), "header %q", header)
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	finder := &fakeUserFinder{users: map[string]*models.User{
		"bob": {ID: 2, Username: "bob", Role: models.RoleUser},
	}}

	token, err := utils.GenerateToken("bob", models.RoleUser, -time.Minute)
	require.NoError(t, err)

	assert.Nil(t, gateRequest(t, finder, "Bearer "+token))
}

func TestAuthenticateDeletedSubject(t *testing.T) {
	// a token issued before account deletion must stop authenticating
	finder := &fakeUserFinder{users: map[string]*models.User{}}

	token, err := utils.GenerateToken("ghost", models.RoleUser, time.Hour)
	require.NoError(t, err)

	assert.Nil(t, gateRequest(t, finder, "Bearer "+token))
}

func TestAuthenticateRoleFromStaleToken(t *testing.T) {
	// the store row decides existence, the token decides the role
	finder := &fakeUserFinder{users: map[string]*models.User{
		"carol": {ID: 3, Username: "carol", Role: models.RoleAdmin},
	}}

	token, err := utils.GenerateToken("carol", models.RoleUser, time.Hour)
	require.NoError(t, err)

	p := gateRequest(t, finder, "Bearer "+token)
	require.NotNil(t, p)
	assert.Equal(t, models.RoleUser, p.Role)
	assert.False(t, p.IsAdmin())
}

func TestEnforceDeniesWithEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(Enforce(NewPolicy(DefaultRules())))
	r.DELETE("/api/admin/users/:id", func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":40101`)
}

func TestEnforceForbiddenForNonAdmin(t *testing.T) {
	r := gin.New()
	r.Use(func(ctx *gin.Context) {
		ctx.Set(ContextPrincipalKey, &Principal{UserID: 7, Subject: "user7", Role: models.RoleUser})
	})
	r.Use(Enforce(NewPolicy(DefaultRules())))
	r.DELETE("/api/admin/users/:id", func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":40301`)
}
