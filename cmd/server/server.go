package main

import (
	"net/http"

	"github.com/damacus/iron-gallery/internal/config"
	"github.com/damacus/iron-gallery/internal/events"
	"github.com/damacus/iron-gallery/internal/gallery"
	"github.com/damacus/iron-gallery/internal/handlers"
	"github.com/damacus/iron-gallery/internal/metrics"
	customMiddleware "github.com/damacus/iron-gallery/internal/middleware"
	"github.com/damacus/iron-gallery/internal/models"
	"github.com/damacus/iron-gallery/internal/renderer"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type serverDeps struct {
	Props   *config.Properties
	Session *gallery.Session
	Store   handlers.CredentialSaver
	Events  *events.Broadcaster
}

func newServer(deps serverDeps) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	galleryHandler := handlers.NewGalleryHandler(deps.Session)
	eventsHandler := handlers.NewEventsHandler(deps.Events)
	configHandler := handlers.NewConfigHandler(deps.Session, deps.Store)
	relayHandler, err := handlers.NewRelayHandler(handlers.RelayOptions{
		AllowPattern: deps.Props.Relay.AllowPattern,
		AllowOrigin:  deps.Props.Relay.AllowOrigin,
		Timeout:      deps.Props.Native.Timeout,
	})
	if err != nil {
		return nil, err
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(customMiddleware.RequestLogger())
	e.Use(customMiddleware.SecurityHeaders(customMiddleware.DefaultHeaderPolicy()))
	e.Use(customMiddleware.CSRF())
	// Applied globally; public routes are skipped internally
	e.Use(customMiddleware.ConfigGuard(deps.Session))

	// Template Renderer
	e.Renderer = renderer.New()

	// Public Routes
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.StaticFS("/assets", renderer.Assets())
	e.GET("/config", configHandler.ConfigPage)
	e.POST("/config", configHandler.SaveConfig)
	e.GET("/api/relay", relayHandler.Relay)

	// Gallery
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, models.NavPrefix)
	})
	e.GET("/gallery", galleryHandler.Browse)
	e.GET("/gallery/*", galleryHandler.Browse)
	e.GET("/blob/:id", galleryHandler.Blob)

	// API
	e.GET("/api/gallery", galleryHandler.BrowseJSON)
	e.GET("/api/gallery/*", galleryHandler.BrowseJSON)
	e.POST("/api/sort", galleryHandler.Sort)
	e.POST("/api/hydrate", galleryHandler.Hydrate)
	e.POST("/api/password", galleryHandler.Password)
	e.GET("/api/events", eventsHandler.Stream)
	e.GET("/api/images/*", galleryHandler.Image)
	e.POST("/api/images/delete", galleryHandler.Delete)

	return e, nil
}
