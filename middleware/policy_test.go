package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudapp/socialforum/models"
)

func defaultPolicy() *Policy {
	return NewPolicy(DefaultRules())
}

func userPrincipal() *Principal {
	return &Principal{UserID: 7, Subject: "user7", Role: models.RoleUser}
}

func adminPrincipal() *Principal {
	return &Principal{UserID: 1, Subject: "root", Role: models.RoleAdmin}
}

func TestPolicyAdminRoutes(t *testing.T) {
	p := defaultPolicy()

	assert.Equal(t, Unauthorized, p.Check("DELETE", "/api/admin/users/5", nil))
	assert.Equal(t, Forbidden, p.Check("DELETE", "/api/admin/users/5", userPrincipal()))
	assert.Equal(t, Allow, p.Check("DELETE", "/api/admin/users/5", adminPrincipal()))

	// admin tier wins for every method and depth
	assert.Equal(t, Forbidden, p.Check("GET", "/api/admin/s3/files", userPrincipal()))
	assert.Equal(t, Allow, p.Check("POST", "/api/admin/s3/cleanup", adminPrincipal()))
}

func TestPolicyOwnerOrAdminRoutes(t *testing.T) {
	p := defaultPolicy()

	assert.Equal(t, Unauthorized, p.Check("DELETE", "/api/posts/9", nil))
	assert.Equal(t, RequiresOwnerCheck, p.Check("DELETE", "/api/posts/9", userPrincipal()))
	assert.Equal(t, RequiresOwnerCheck, p.Check("DELETE", "/api/posts/9", adminPrincipal()))
	assert.Equal(t, RequiresOwnerCheck, p.Check("DELETE", "/api/comments/3", userPrincipal()))
}

func TestPolicyPublicRoutes(t *testing.T) {
	p := defaultPolicy()

	assert.Equal(t, Allow, p.Check("GET", "/api/posts", nil))
	assert.Equal(t, Allow, p.Check("GET", "/api/posts/42", nil))
	assert.Equal(t, Allow, p.Check("GET", "/api/posts/shared/abc-token", nil))
	assert.Equal(t, Allow, p.Check("POST", "/api/users/register", nil))
	assert.Equal(t, Allow, p.Check("POST", "/api/users/login", nil))
	assert.Equal(t, Allow, p.Check("GET", "/api/auth/oauth/github/login", nil))
	assert.Equal(t, Allow, p.Check("GET", "/health", nil))
}

func TestPolicyAuthenticatedRoutes(t *testing.T) {
	p := defaultPolicy()

	assert.Equal(t, Unauthorized, p.Check("POST", "/api/posts", nil))
	assert.Equal(t, Allow, p.Check("POST", "/api/posts", userPrincipal()))
	assert.Equal(t, Unauthorized, p.Check("POST", "/api/posts/12/share", nil))
	assert.Equal(t, Allow, p.Check("POST", "/api/posts/12/share", userPrincipal()))
	assert.Equal(t, Unauthorized, p.Check("POST", "/api/upload/presign", nil))
	assert.Equal(t, Unauthorized, p.Check("GET", "/api/users/me", nil))
	assert.Equal(t, Allow, p.Check("GET", "/api/users/me", userPrincipal()))
}

func TestPolicyDefaultIsAuthenticated(t *testing.T) {
	p := defaultPolicy()

	// paths matching no explicit rule never fall open
	assert.Equal(t, Unauthorized, p.Check("GET", "/api/something/new", nil))
	assert.Equal(t, Allow, p.Check("GET", "/api/something/new", userPrincipal()))
	assert.Equal(t, Unauthorized, p.Check("POST", "/api/posts/12/comments", nil))
	assert.Equal(t, Allow, p.Check("POST", "/api/posts/12/comments", userPrincipal()))
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/api/posts", "/api/posts", true},
		{"/api/posts", "/api/posts/1", false},
		{"/api/posts/*", "/api/posts/1", true},
		{"/api/posts/*", "/api/posts/1/share", false},
		{"/api/posts/*/share", "/api/posts/1/share", true},
		{"/api/admin/**", "/api/admin", true},
		{"/api/admin/**", "/api/admin/users/5", true},
		{"/api/admin/**", "/api/administrator", false},
		{"/health", "/health", true},
		{"/health", "/healthz", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchPattern(tt.pattern, tt.path), "%s vs %s", tt.pattern, tt.path)
	}
}
