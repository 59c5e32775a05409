// winrahi/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(app App) *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(NewStructuredLogger(app.Logger()))
	mux.Use(middleware.Recoverer)
	mux.Use(SecurityHeadersMiddleware)

	// Uploaded images (local storage mode)
	mux.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(app.UploadDir()))))

	mux.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Get("/items", MakeHandler(app, HandleListItems))
		r.Get("/items/{itemID}", MakeHandler(app, HandleItemDetail))
		r.Get("/stats", MakeHandler(app, HandleStats))
		r.With(OptionalAuth(app)).Post("/reports", MakeHandler(app, HandleReport))

		// Account endpoints
		r.Post("/auth/signup", MakeHandler(app, HandleSignup))
		r.Post("/auth/login", MakeHandler(app, HandleLogin))
		r.With(RequireAuth(app)).Get("/auth/me", MakeHandler(app, HandleMe))

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(app))
			r.Post("/items", MakeHandler(app, HandleCreateItem))
			r.Patch("/items/{itemID}", MakeHandler(app, HandleUpdateItem))
			r.Delete("/items/{itemID}", MakeHandler(app, HandleDeleteItem))
			r.Get("/dashboard", MakeHandler(app, HandleDashboard))
			r.Get("/profile", MakeHandler(app, HandleGetProfile))
			r.Put("/profile", MakeHandler(app, HandleUpdateProfile))
		})

		// Moderation endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAuth(app))
			r.Use(RequireAdmin(app))
			r.Get("/reports", MakeHandler(app, HandleAdminReports))
			r.Patch("/reports/{reportID}", MakeHandler(app, HandleReviewReport))
			r.Get("/items", MakeHandler(app, HandleAdminItems))
			r.Delete("/items/{itemID}", MakeHandler(app, HandleAdminDeleteItem))
			r.Post("/items/{itemID}/deactivate", MakeHandler(app, HandleAdminDeactivateItem))
			r.Get("/users", MakeHandler(app, HandleAdminUsers))
			r.Post("/users/{userID}/grant-admin", MakeHandler(app, HandleGrantAdmin))
			r.Get("/log", MakeHandler(app, HandleAdminLog))
		})
	})

	return mux
}
