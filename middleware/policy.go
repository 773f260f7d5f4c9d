package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cloudapp/socialforum/utils"
)

// Requirement is the capability a route demands.
type Requirement int

const (
	// Public routes need no principal.
	Public Requirement = iota
	// Authenticated routes need some valid principal.
	Authenticated
	// RequireAdmin routes need a principal with the ADMIN role.
	RequireAdmin
	// OwnerOrAdmin routes need some principal; the handler finishes the
	// ownership check once the target entity is loaded.
	OwnerOrAdmin
)

// Decision is the outcome of evaluating the policy for one request.
type Decision int

const (
	// Allow lets the request through to the handler.
	Allow Decision = iota
	// Unauthorized means no valid principal was present (401).
	Unauthorized
	// Forbidden means a principal was present but lacks the capability (403).
	Forbidden
	// RequiresOwnerCheck lets the request through; the handler must verify
	// ownership against the loaded entity.
	RequiresOwnerCheck
)

// Rule binds a method pattern and a path pattern to a requirement. Method "*"
// matches every method. Path patterns match by segment: "*" matches exactly
// one segment, a trailing "**" matches any remainder (including none).
type Rule struct {
	Method      string
	Pattern     string
	Requirement Requirement
}

// Policy is the static route-access rule table. Rules are loaded once at
// process start and read concurrently without synchronization.
type Policy struct {
	admin  []Rule
	authed []Rule // Authenticated and OwnerOrAdmin rules
	public []Rule
}

// NewPolicy splits rules into precedence tiers: explicit admin rules win over
// explicit authenticated rules, which win over explicit public rules; a
// request matching nothing defaults to Authenticated.
func NewPolicy(rules []Rule) *Policy {
	p := &Policy{}
	for _, r := range rules {
		switch r.Requirement {
		case RequireAdmin:
			p.admin = append(p.admin, r)
		case Authenticated, OwnerOrAdmin:
			p.authed = append(p.authed, r)
		case Public:
			p.public = append(p.public, r)
		}
	}
	return p
}

// DefaultRules is the production rule table, mirroring the route surface in
// routes.SetupRouter.
func DefaultRules() []Rule {
	return []Rule{
		{Method: "*", Pattern: "/api/admin/**", Requirement: RequireAdmin},

		{Method: "POST", Pattern: "/api/posts", Requirement: Authenticated},
		{Method: "POST", Pattern: "/api/posts/*/share", Requirement: Authenticated},
		{Method: "DELETE", Pattern: "/api/posts/*", Requirement: OwnerOrAdmin},
		{Method: "DELETE", Pattern: "/api/comments/*", Requirement: OwnerOrAdmin},
		{Method: "*", Pattern: "/api/comments/**", Requirement: Authenticated},
		{Method: "*", Pattern: "/api/upload/**", Requirement: Authenticated},
		{Method: "GET", Pattern: "/api/users/me", Requirement: Authenticated},

		{Method: "POST", Pattern: "/api/users/register", Requirement: Public},
		{Method: "POST", Pattern: "/api/users/login", Requirement: Public},
		{Method: "*", Pattern: "/api/auth/**", Requirement: Public},
		{Method: "GET", Pattern: "/api/posts", Requirement: Public},
		{Method: "GET", Pattern: "/api/posts/*", Requirement: Public},
		{Method: "GET", Pattern: "/api/posts/shared/**", Requirement: Public},
		{Method: "GET", Pattern: "/api/posts/user/**", Requirement: Public},
		{Method: "GET", Pattern: "/health", Requirement: Public},
	}
}

// Check evaluates the first matching rule in precedence order and maps it
// against the (possibly nil) principal.
func (p *Policy) Check(method, path string, principal *Principal) Decision {
	for _, r := range p.admin {
		if r.matches(method, path) {
			switch {
			case principal == nil:
				return Unauthorized
			case !principal.IsAdmin():
				return Forbidden
			default:
				return Allow
			}
		}
	}

	for _, r := range p.authed {
		if r.matches(method, path) {
			if principal == nil {
				return Unauthorized
			}
			if r.Requirement == OwnerOrAdmin {
				return RequiresOwnerCheck
			}
			return Allow
		}
	}

	for _, r := range p.public {
		if r.matches(method, path) {
			return Allow
		}
	}

	// default: authenticated
	if principal == nil {
		return Unauthorized
	}
	return Allow
}

// Enforce runs the policy after the authentication gate. Denials answer with
// the structured JSON envelope and never reach application logic.
func Enforce(policy *Policy) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		principal := CurrentPrincipal(ctx)
		path := ctx.Request.URL.Path

		switch policy.Check(ctx.Request.Method, path, principal) {
		case Unauthorized:
			utils.Sugar.Infow("request denied: no valid principal", "method", ctx.Request.Method, "path", path)
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
			ctx.Abort()
		case Forbidden:
			utils.Sugar.Infow("request denied: insufficient role",
				"method", ctx.Request.Method, "path", path, "subject", principal.Subject)
			utils.Error(ctx, http.StatusForbidden, 40301, "insufficient permissions")
			ctx.Abort()
		default:
			ctx.Next()
		}
	}
}

func (r Rule) matches(method, path string) bool {
	if r.Method != "*" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return matchPattern(r.Pattern, path)
}

// matchPattern compares path against pattern segment by segment.
func matchPattern(pattern, path string) bool {
	pSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	aSegs := strings.Split(strings.Trim(path, "/"), "/")

	for i, seg := range pSegs {
		if seg == "**" {
			return true
		}
		if i >= len(aSegs) {
			return false
		}
		if seg == "*" {
			continue
		}
		if seg != aSegs[i] {
			return false
		}
	}
	return len(pSegs) == len(aSegs)
}
