package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/damacus/iron-gallery/internal/gallery"
	"github.com/damacus/iron-gallery/internal/logging"
	"github.com/damacus/iron-gallery/internal/models"
	"github.com/damacus/iron-gallery/internal/services"
	"github.com/labstack/echo/v4"
)

// BlobSource serves hydrated image bytes
type BlobSource interface {
	Blobs() *gallery.BlobStore
}

type GalleryHandler struct {
	blobs BlobSource
}

func NewGalleryHandler(blobs BlobSource) *GalleryHandler {
	return &GalleryHandler{blobs: blobs}
}

// navPath extracts the folder path from the wildcard route
func navPath(c echo.Context) string {
	p := c.Param("*")
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return gallery.NormalizeNavPath(p)
}

func pageParam(c echo.Context) int {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (h *GalleryHandler) load(c echo.Context) (*gallery.View, error) {
	nav, err := GetNavigator(c)
	if err != nil {
		return nil, err
	}
	if _, err := nav.Navigate(c.Request().Context(), navPath(c)); err != nil {
		return nil, err
	}
	return nav.SetPage(pageParam(c))
}

// Browse renders the gallery page for a folder
func (h *GalleryHandler) Browse(c echo.Context) error {
	view, err := h.load(c)
	if err != nil {
		if _, ok := err.(*echo.HTTPError); ok {
			return err
		}
		logging.Warn("folder load failed", logging.String("path", navPath(c)), logging.Err(err))
		return c.Render(StatusFor(err), "error", map[string]interface{}{
			"Message": services.Describe(err),
			"CSRF":    CSRFToken(c),
		})
	}

	title := ""
	if n := len(view.Breadcrumbs); n > 0 {
		title = view.Breadcrumbs[n-1].Name
	}
	pages := make([]int, view.PageCount)
	for i := range pages {
		pages[i] = i + 1
	}

	return c.Render(http.StatusOK, "gallery", map[string]interface{}{
		"View":  view,
		"Title": title,
		"Pages": pages,
		"CSRF":  CSRFToken(c),
	})
}

// BrowseJSON returns the folder view as JSON
func (h *GalleryHandler) BrowseJSON(c echo.Context) error {
	view, err := h.load(c)
	if err != nil {
		if _, ok := err.(*echo.HTTPError); ok {
			return err
		}
		return APIError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// Sort re-orders the loaded folder without listing it again
func (h *GalleryHandler) Sort(c echo.Context) error {
	nav, err := GetNavigator(c)
	if err != nil {
		return err
	}
	view, err := nav.Resort(models.ParseSortOrder(c.FormValue("order")))
	if err != nil {
		return APIError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// Hydrate starts hydrating one page; progress arrives on the event stream
func (h *GalleryHandler) Hydrate(c echo.Context) error {
	nav, err := GetNavigator(c)
	if err != nil {
		return err
	}
	run, err := nav.StartHydration(pageParam(c))
	if err != nil {
		return APIError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{"run": run})
}

// Password answers the decryption prompt; cancel=1 or an empty password declines
func (h *GalleryHandler) Password(c echo.Context) error {
	nav, err := GetNavigator(c)
	if err != nil {
		return err
	}
	if c.FormValue("cancel") == "1" {
		nav.Secret().Decline()
	} else {
		nav.Secret().Supply(c.FormValue("password"))
	}
	return c.NoContent(http.StatusNoContent)
}

// Image returns one entry by code; htmx requests get the lightbox fragment
func (h *GalleryHandler) Image(c echo.Context) error {
	nav, err := GetNavigator(c)
	if err != nil {
		return err
	}
	// S3 codes carry the object key, so the route uses a wildcard
	code, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		code = c.Param("*")
	}
	img, ok := nav.Image(code)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Image not found")
	}
	if c.Request().Header.Get("HX-Request") == "true" {
		return c.Render(http.StatusOK, "lightbox", map[string]interface{}{"Image": img})
	}
	return c.JSON(http.StatusOK, img)
}

// Delete removes one file
func (h *GalleryHandler) Delete(c echo.Context) error {
	nav, err := GetNavigator(c)
	if err != nil {
		return err
	}
	code := strings.TrimSpace(c.FormValue("code"))
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing file code")
	}
	if err := nav.Delete(c.Request().Context(), code); err != nil {
		logging.Warn("delete failed", logging.String("code", code), logging.Err(err))
		return APIError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Blob serves hydrated bytes
func (h *GalleryHandler) Blob(c echo.Context) error {
	blob, ok := h.blobs.Blobs().Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Blob not found")
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Blob(http.StatusOK, blob.ContentType, blob.Data)
}
