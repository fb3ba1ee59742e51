package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/social-post-scheduler/internal/auth"
	"github.com/iliyamo/social-post-scheduler/internal/handler"
	"github.com/iliyamo/social-post-scheduler/internal/middleware"
	"github.com/iliyamo/social-post-scheduler/internal/model"
)

// Deps bundles everything route registration needs. Handlers implement
// the endpoints; Codec and Users feed the authentication gate; AuthLimiter
// is the optional Redis token bucket applied to credential endpoints.
type Deps struct {
	Auth        *handler.AuthHandler
	Posts       *handler.PostHandler
	TikTok      *handler.TikTokHandler
	TikTokPosts *handler.TikTokPostHandler
	Admin       *handler.AdminHandler
	Codec       *auth.TokenCodec
	Users       auth.UserStore
	AuthLimiter echo.MiddlewareFunc
}

// RegisterRoutes wires the full API surface.
//
// Unauthenticated credential operations live under /v1/auth and carry the
// rate limiter (login and refresh are the brute-force targets). Everything
// else under /v1 runs behind the authentication gate plus the
// active-account check; the /v1/admin subtree additionally requires the
// admin role, so admin endpoints implicitly demand a valid, active
// identity first.
func RegisterRoutes(e *echo.Echo, d Deps) {
	// Health check for load balancers and monitoring; no auth.
	e.GET("/healthz", handler.Health)

	g := e.Group("/v1/auth")
	if d.AuthLimiter != nil {
		g.Use(d.AuthLimiter)
	}
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.RefreshTokens)

	authed := e.Group("/v1", middleware.Authenticate(d.Codec, d.Users), middleware.RequireActive)
	authed.POST("/auth/logout", d.Auth.Logout)
	authed.GET("/users/me", d.Auth.Me)

	authed.POST("/posts", d.Posts.Create)
	authed.GET("/posts", d.Posts.List)
	authed.GET("/posts/:id", d.Posts.Get)
	authed.PATCH("/posts/:id", d.Posts.Update)
	authed.DELETE("/posts/:id", d.Posts.Delete)

	authed.GET("/auth/tiktok/authorize", d.TikTok.Authorize)
	authed.GET("/auth/tiktok/callback", d.TikTok.Callback)
	authed.DELETE("/auth/tiktok/disconnect", d.TikTok.Disconnect)
	authed.POST("/tiktok/posts", d.TikTokPosts.Create)
	authed.POST("/tiktok/posts/:id/publish", d.TikTokPosts.Publish)

	admin := authed.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/users", d.Admin.ListUsers)
	admin.PATCH("/users/:id/role", d.Admin.SetRole)
}
