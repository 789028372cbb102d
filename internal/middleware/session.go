// File: internal/middleware/session.go
package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"starterkit_backend/internal/config"
	"starterkit_backend/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteClass is the category a request path falls into for the session gate.
type RouteClass int

const (
	RouteProtected RouteClass = iota
	RouteAuthAPI
	RouteTestAPI
	RoutePublic
	RouteAuthPage
)

func (c RouteClass) String() string {
	switch c {
	case RouteAuthAPI:
		return "auth-api"
	case RouteTestAPI:
		return "test-api"
	case RoutePublic:
		return "public"
	case RouteAuthPage:
		return "auth-page"
	default:
		return "protected"
	}
}

// Action is what the gate does with a request.
type Action int

const (
	ActionAllow Action = iota
	ActionRedirectHome
	ActionRedirectLogin
)

// Decision is the gate's verdict. Location is set for redirects.
type Decision struct {
	Action   Action
	Location string
}

// GateConfig describes the route tables of the session gate.
// Route entries match exactly, or as a prefix when they end in "/*".
type GateConfig struct {
	AuthAPIPrefix   string
	TestAPIPrefix   string
	PublicRoutes    []string
	AuthRoutes      []string
	LoginPath       string
	DefaultRedirect string
	// TestBypass lets the e2e runner through with a mock session. It must
	// only be enabled together with the test endpoints.
	TestBypass bool
}

// GateConfigFromConfig builds the gate tables from application configuration.
func GateConfigFromConfig(cfg *config.Config) GateConfig {
	return GateConfig{
		AuthAPIPrefix:   "/api/auth",
		TestAPIPrefix:   "/api/test",
		PublicRoutes:    cfg.PublicRoutes,
		AuthRoutes:      cfg.AuthRoutes,
		LoginPath:       cfg.LoginPath,
		DefaultRedirect: cfg.DefaultLoginRedirect,
		TestBypass:      cfg.EnableTestEndpoints,
	}
}

// Classify assigns a path to its route class. Framework and test API
// prefixes win over every other table.
func (g GateConfig) Classify(path string) RouteClass {
	switch {
	case hasPathPrefix(path, g.AuthAPIPrefix):
		return RouteAuthAPI
	case hasPathPrefix(path, g.TestAPIPrefix):
		return RouteTestAPI
	case matchRoute(g.AuthRoutes, path):
		return RouteAuthPage
	case matchRoute(g.PublicRoutes, path):
		return RoutePublic
	default:
		return RouteProtected
	}
}

// Decide applies the gate's decision table. target is the original path
// plus query, used as the callbackUrl when redirecting to login.
func (g GateConfig) Decide(class RouteClass, authenticated bool, target string) Decision {
	switch class {
	case RouteAuthAPI, RouteTestAPI, RoutePublic:
		return Decision{Action: ActionAllow}
	case RouteAuthPage:
		if authenticated {
			return Decision{Action: ActionRedirectHome, Location: g.DefaultRedirect}
		}
		return Decision{Action: ActionAllow}
	default:
		if authenticated {
			return Decision{Action: ActionAllow}
		}
		return Decision{Action: ActionRedirectLogin, Location: g.loginURL(target)}
	}
}

// loginURL builds LoginPath?callbackUrl=<target>, with target encoded exactly once.
func (g GateConfig) loginURL(target string) string {
	return g.LoginPath + "?" + url.Values{"callbackUrl": {target}}.Encode()
}

// TokenDecoder verifies a raw session token.
type TokenDecoder interface {
	Decode(raw string) (*session.Token, error)
}

// RevocationList reports signed-out token IDs.
type RevocationList interface {
	IsBlocklisted(jti string) bool
}

// SessionGate redirects page requests according to the session state.
func SessionGate(g GateConfig, decoder TokenDecoder, revoked RevocationList, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("SessionGate")
	return func(c *gin.Context) {
		req := c.Request
		class := g.Classify(req.URL.Path)

		// Framework and test APIs pass through without touching the token.
		if class == RouteAuthAPI || class == RouteTestAPI {
			c.Next()
			return
		}

		authenticated := false
		if tok, err := decoder.Decode(session.TokenFromRequest(req)); err == nil && tok.Authenticated() {
			authenticated = revoked == nil || !revoked.IsBlocklisted(tok.ID)
		}
		if !authenticated && g.TestBypass && session.IsTestRunner(req) && session.HasMockSession(req) {
			log.Debug("E2E mock session accepted", zap.String("path", req.URL.Path))
			authenticated = true
		}

		target := req.URL.Path
		if req.URL.RawQuery != "" {
			target += "?" + req.URL.RawQuery
		}

		d := g.Decide(class, authenticated, target)
		switch d.Action {
		case ActionRedirectHome, ActionRedirectLogin:
			log.Debug("Redirecting",
				zap.String("path", req.URL.Path),
				zap.Stringer("routeClass", class),
				zap.String("location", d.Location))
			c.Redirect(http.StatusTemporaryRedirect, d.Location)
			c.Abort()
		default:
			c.Next()
		}
	}
}

func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func matchRoute(routes []string, path string) bool {
	for _, r := range routes {
		if base, ok := strings.CutSuffix(r, "/*"); ok {
			if hasPathPrefix(path, base) {
				return true
			}
			continue
		}
		if path == r {
			return true
		}
	}
	return false
}
