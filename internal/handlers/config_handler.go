package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/damacus/iron-gallery/internal/logging"
	"github.com/damacus/iron-gallery/internal/models"
	"github.com/damacus/iron-gallery/internal/services"
	"github.com/labstack/echo/v4"
)

// ConfigSession is the part of the gallery session the config page drives
type ConfigSession interface {
	Credentials() services.Credentials
	Configure(ctx context.Context, creds services.Credentials, commit func(services.Credentials) error) error
}

// CredentialSaver persists credentials that passed validation
type CredentialSaver interface {
	Save(creds services.Credentials) error
}

type ConfigHandler struct {
	session ConfigSession
	store   CredentialSaver
}

func NewConfigHandler(session ConfigSession, store CredentialSaver) *ConfigHandler {
	return &ConfigHandler{session: session, store: store}
}

func (h *ConfigHandler) pageData(c echo.Context, creds services.Credentials, errMsg string) map[string]interface{} {
	mode := string(creds.Mode)
	if mode == "" {
		if resolved, err := services.ResolveMode(creds); err == nil {
			mode = string(resolved)
		}
	}
	return map[string]interface{}{
		"CSRF":      CSRFToken(c),
		"Mode":      mode,
		"HasAPIKey": creds.HasAPIKey(),
		"HasS3":     creds.HasS3(),
		"AccessKey": creds.AccessKey,
		"Error":     errMsg,
	}
}

// ConfigPage renders the credential form
func (h *ConfigHandler) ConfigPage(c echo.Context) error {
	return c.Render(http.StatusOK, "config", h.pageData(c, h.session.Credentials(), ""))
}

// SaveConfig validates the submitted credentials, stores them, then activates them.
// Blank secret fields keep the stored values.
func (h *ConfigHandler) SaveConfig(c echo.Context) error {
	submitted := services.Credentials{
		Mode:      models.ConnectionMode(strings.TrimSpace(c.FormValue("mode"))),
		APIKey:    strings.TrimSpace(c.FormValue("apiKey")),
		AccessKey: strings.TrimSpace(c.FormValue("s3Id")),
		SecretKey: strings.TrimSpace(c.FormValue("s3Secret")),
	}
	creds := h.session.Credentials().Merge(submitted)

	var saveErr error
	err := h.session.Configure(c.Request().Context(), creds, func(valid services.Credentials) error {
		saveErr = h.store.Save(valid)
		return saveErr
	})
	if saveErr != nil {
		logging.Error("failed to persist credentials", logging.Err(saveErr))
		return h.fail(c, creds, "Credentials are valid but could not be saved")
	}
	if err != nil {
		logging.Warn("credential validation failed", logging.String("mode", string(creds.Mode)), logging.Err(err))
		return h.fail(c, creds, services.Describe(err))
	}

	logging.Info("credentials updated", logging.String("mode", string(creds.Mode)))
	if c.Request().Header.Get("HX-Request") == "true" {
		return HTMXRedirect(c, models.NavPrefix)
	}
	return c.Redirect(http.StatusSeeOther, models.NavPrefix)
}

func (h *ConfigHandler) fail(c echo.Context, creds services.Credentials, msg string) error {
	if c.Request().Header.Get("HX-Request") == "true" {
		return c.Render(http.StatusOK, "config_error", msg)
	}
	return c.Render(http.StatusUnprocessableEntity, "config", h.pageData(c, creds, msg))
}
