package main

import (
	"net/http"
	"time"

	"github.com/Moaaz208/Mizo-Candle/api"
	"github.com/Moaaz208/Mizo-Candle/internal/handlers"
	"github.com/Moaaz208/Mizo-Candle/internal/middleware"
	"github.com/Moaaz208/Mizo-Candle/internal/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// routerDeps is everything the HTTP surface needs.
type routerDeps struct {
	app          *services.AppService
	tokens       *services.TokenService
	sessions     *services.SessionService
	limiter      *middleware.RateLimiter
	gateLimit    int
	health       *handlers.HealthHandler
	origins      []string
	cookieName   string
	isProduction bool
}

// newRouter wires handlers and middleware into the chi router.
//
// Requests under /api/v1 other than /app/boot need a client session. The
// storefront and chat additionally need the site to be visible, while the
// admin, monitor and AI routes need the passcode.
func newRouter(d routerDeps) http.Handler {
	appHandler := handlers.NewAppHandler(d.app, d.cookieName, d.isProduction)
	storefrontHandler := handlers.NewStorefrontHandler(d.app, d.app.AI())
	adminHandler := handlers.NewAdminHandler(d.app)
	aiHandler := handlers.NewAIHandler(d.app.AI())

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(d.origins))
	r.Use(chimiddleware.Compress(5))

	r.Get("/health", d.health.Health)
	r.Get("/ready", d.health.Ready)
	r.Handle("/metrics", middleware.MetricsHandler())

	// Swagger API documentation
	r.Get("/api/docs/doc.json", serveOpenAPI)
	r.Get("/api/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/api/docs/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.limiter.Limit("api"))

		// Slow AI jobs run without the request timeout.
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(60 * time.Second))

			r.Post("/app/boot", appHandler.Boot)

			r.Group(func(r chi.Router) {
				r.Use(middleware.SessionAuth(d.tokens, d.sessions, d.cookieName))

				r.Get("/app/state", appHandler.State)
				r.Post("/app/navigate", appHandler.Navigate)
				r.Post("/app/logout", appHandler.Logout)
				r.Post("/app/location", appHandler.ReportLocation)

				r.Route("/app/gate", func(r chi.Router) {
					r.Use(d.limiter.WithLimit(d.gateLimit).Limit("gate"))
					r.Post("/keys", appHandler.PressKey)
					r.Post("/passcode", appHandler.SubmitPasscode)
					r.Post("/cancel", appHandler.CancelGate)
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireSiteVisible(d.app))
					r.Get("/storefront", storefrontHandler.Storefront)
					r.Post("/chat", storefrontHandler.Chat)
					r.Post("/chat/reset", storefrontHandler.ResetChat)
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireUnlocked(d.app))

					r.Route("/admin", func(r chi.Router) {
						r.Get("/config", adminHandler.GetConfig)
						r.Patch("/config", adminHandler.UpdateConfig)
						r.Post("/config/hero/generate", adminHandler.GenerateHeroCopy)
						r.Get("/products", adminHandler.ListProducts)
						r.Post("/products", adminHandler.AddProduct)
						r.Post("/products/describe", adminHandler.DescribeProduct)
						r.Delete("/products/{id}", adminHandler.DeleteProduct)
					})

					r.Get("/monitor/visitors", adminHandler.Visitors)
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(d.tokens, d.sessions, d.cookieName))
			r.Use(middleware.RequireUnlocked(d.app))

			r.Route("/ai", func(r chi.Router) {
				r.Post("/image", aiHandler.GenerateImage)
				r.Post("/image/edit", aiHandler.EditImage)
				r.Post("/video", aiHandler.GenerateVideo)
				r.Get("/video/download", aiHandler.DownloadVideo)
				r.Post("/analyze", aiHandler.AnalyzeMedia)
				r.Post("/transcribe", aiHandler.Transcribe)
				r.Post("/speech", aiHandler.SynthesizeSpeech)
				r.Post("/think", aiHandler.DeepThink)
			})
		})
	})

	return r
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(api.OpenAPI)
}
