package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-tracker/internal/handler"
)

// Deps carries the handlers and route-level middleware RegisterRoutes wires.
type Deps struct {
	Auth    *handler.AuthHandler
	Entries *handler.EntryHandler
	// JWT authenticates protected routes (middleware.JWTAuth).
	JWT echo.MiddlewareFunc
	// RateLimit throttles every /api route; on protected routes it runs
	// after JWT so limits can be keyed per user.  nil disables it.
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes mounts the status endpoints at the root and the JSON API
// under /api.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/", handler.Root)
	e.GET("/healthz", handler.Health)

	var public []echo.MiddlewareFunc
	protected := []echo.MiddlewareFunc{d.JWT}
	if d.RateLimit != nil {
		public = append(public, d.RateLimit)
		protected = append(protected, d.RateLimit)
	}

	api := e.Group("/api")

	// Session endpoints; logout accepts whatever credentials are present.
	api.POST("/register", d.Auth.Register, public...)
	api.POST("/login", d.Auth.Login, public...)
	api.POST("/refresh", d.Auth.Refresh, public...)
	api.GET("/logout", d.Auth.Logout, public...)

	p := api.Group("", protected...)
	p.GET("/get-user", d.Auth.GetCurrentUser)

	// ---- Movies ----
	p.POST("/create-movies", d.Entries.CreateMovie)
	p.PUT("/update-movie/:id", d.Entries.UpdateMovie)
	p.DELETE("/delete-movies/:id", d.Entries.DeleteMovie)
	p.GET("/get-movies", d.Entries.ListMovies)
	p.GET("/get-movie/:id", d.Entries.GetMovie)

	// ---- Series ----
	p.POST("/create-series", d.Entries.CreateSeries)
	p.PUT("/update-series/:id", d.Entries.UpdateSeries)
	p.DELETE("/delete-series/:id", d.Entries.DeleteSeries)
	p.GET("/get-series", d.Entries.ListSeries)
	p.GET("/get-series/:id", d.Entries.GetSeries)
}
