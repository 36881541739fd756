package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteGroup defines an endpoint group with its auth requirements.
type RouteGroup struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
}

// routeGroups defines all endpoint groups and their auth requirements.
// This table is the single source of truth for routing decisions.
var routeGroups = []RouteGroup{
	{Name: "public-view", PathPrefix: "/public", RequiresAuth: false}, // capability URLs, the token is the credential
	{Name: "api", PathPrefix: "/api", RequiresAuth: true},             // API: auth required (exceptions in publicExceptions)
}

// GetRouteGroups returns the route group definitions for testing.
func GetRouteGroups() []RouteGroup {
	return routeGroups
}

// publicExceptions are specific paths that don't require auth within
// otherwise protected groups.
var publicExceptions = []string{
	"/api/healthz",
	"/api/auth/login",
}

// IsAuthRequired checks if a given path requires authentication.
// This is used by the auth middleware to make gating decisions.
func IsAuthRequired(path string) bool {
	// Check public exceptions (paths that are always public)
	for _, exc := range publicExceptions {
		if pathMatchesPrefix(path, exc) {
			return false
		}
	}

	for _, rg := range routeGroups {
		if pathMatchesPrefix(path, rg.PathPrefix) {
			return rg.RequiresAuth
		}
	}

	// Default: require auth for unknown paths
	return true
}

// pathMatchesPrefix checks if path equals or is a subpath of prefix.
func pathMatchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		// Check for path separator
		if path[len(prefix)] == '/' {
			return true
		}
	}
	return false
}

// setupRoutes creates the chi router with all route groups mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Global middleware stack (order matters for correct logging)
	// RequestID must come first so GetReqID works in requestLoggerMiddleware.
	// accessLogMiddleware wraps the response, Recoverer writes through the
	// wrapper, so the access log captures correct status for panics.
	r.Use(middleware.RequestID)
	r.Use(requestLoggerMiddleware(s.logger, s.trustedProxies, s.cfg.Logging.AllowSensitive))
	r.Use(s.accessLogMiddleware)
	r.Use(middleware.Recoverer)

	// Rate limiting for high-risk public endpoints
	r.Use(s.rateLimitMiddleware)

	// Auth middleware for all routes (checks IsAuthRequired)
	r.Use(s.authMiddleware)

	// API endpoints
	r.Route("/api", func(r chi.Router) {
		// Health endpoint (public)
		r.Get("/healthz", s.healthHandler.Check)

		// Auth endpoints (login is public, the rest need a session)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.authHandler.Login)
			r.Post("/logout", s.authHandler.Logout)
			r.Get("/me", s.authHandler.Me)
			r.Put("/me", s.authHandler.UpdateProfile)
			r.Put("/password", s.authHandler.ChangePassword)
		})

		// Humidor endpoints, with per-humidor cigars, shares and links
		r.Route("/humidors", func(r chi.Router) {
			r.Get("/", s.humidorHandler.List)
			r.Post("/", s.humidorHandler.Create)
			r.Get("/shared-with-me", s.humidorHandler.SharedWithMe)
			r.Route("/{humidorID}", func(r chi.Router) {
				r.Get("/", s.humidorHandler.Get)
				r.Put("/", s.humidorHandler.Update)
				r.Delete("/", s.humidorHandler.Delete)
				r.Get("/cigars", s.cigarHandler.ListByHumidor)
				r.Post("/cigars", s.cigarHandler.AddToHumidor)
				r.Get("/shares", s.shareHandler.List)
				r.Post("/shares", s.shareHandler.Grant)
				r.Put("/shares/{granteeID}", s.shareHandler.UpdateLevel)
				r.Delete("/shares/{granteeID}", s.shareHandler.Revoke)
				r.Get("/public-links", s.linkHandler.List)
				r.Post("/public-links", s.linkHandler.Create)
				r.Delete("/public-links", s.linkHandler.RevokeAll)
			})
		})

		// Cigar endpoints addressed by cigar id
		r.Route("/cigars/{cigarID}", func(r chi.Router) {
			r.Get("/", s.cigarHandler.Get)
			r.Put("/", s.cigarHandler.Update)
			r.Delete("/", s.cigarHandler.Delete)
			r.Put("/favorite", s.cigarHandler.SetFavorite)
			r.Post("/move", s.cigarHandler.Move)
		})

		r.Get("/wishlist", s.cigarHandler.ListWishList)
		r.Post("/wishlist", s.cigarHandler.AddWishListItem)

		// Revoking a single link works by token id, without naming the humidor
		r.Delete("/public-links/{tokenID}", s.linkHandler.RevokeOne)

		// Admin endpoints (authenticated, admin checked per handler)
		r.Route("/admin", func(r chi.Router) {
			r.Get("/users", s.adminHandler.ListUsers)
			r.Post("/users", s.adminHandler.CreateUser)
			r.Get("/users/{userID}", s.adminHandler.GetUser)
			r.Put("/users/{userID}", s.adminHandler.UpdateUser)
			r.Delete("/users/{userID}", s.adminHandler.DeleteUser)
			r.Post("/transfer-ownership", s.adminHandler.TransferOwnership)
		})
	})

	// Public share views live at the host root, outside /api
	r.Get("/public/humidors/{tokenID}", s.linkHandler.PublicView)

	return r
}
