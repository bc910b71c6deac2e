// Package httpapi serves discovery and health probes over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Leganyst/openslots/internal/apperror"
	"github.com/Leganyst/openslots/internal/obs"
	"github.com/Leganyst/openslots/internal/service"
)

// Pinger reports whether the backing store is reachable. *sql.DB fits.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	searcher service.Searcher
	db       Pinger
}

// New builds the echo instance with all routes registered.
func New(searcher service.Searcher, db Pinger) *echo.Echo {
	h := &Handler{searcher: searcher, db: db}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "err", v.Error)
			}
			obs.Logger.Info("http_request", attrs...)
			return nil
		},
	}))

	e.GET("/healthz", h.Healthz)
	e.GET("/ready", h.Ready)
	e.GET("/v1/discovery", h.Discovery)
	return e
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *Handler) Ready(c echo.Context) error {
	if h.db == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db not initialized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}

// Discovery: GET /v1/discovery?serviceCategory=&city=&zipCode=&timeWindow=&bid=&page=&pageSize=
func (h *Handler) Discovery(c echo.Context) error {
	q, err := service.ParseSearchQuery(
		c.QueryParam("serviceCategory"),
		c.QueryParam("city"),
		c.QueryParam("timeWindow"),
		c.QueryParam("zipCode"),
	)
	if err != nil {
		return badRequest(c, err.Error())
	}

	bid, err := intParam(c, "bid")
	if err != nil {
		return badRequest(c, err.Error())
	}
	page, err := intParam(c, "page")
	if err != nil {
		return badRequest(c, err.Error())
	}
	size, err := intParam(c, "pageSize")
	if err != nil {
		return badRequest(c, err.Error())
	}

	results, err := h.searcher.Search(c.Request().Context(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, service.BuildSearchView(results, bid, int(page), int(size)))
}

func intParam(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "kind": apperror.KindValidation})
}

func writeError(c echo.Context, err error) error {
	kind := apperror.KindOf(err)
	code := http.StatusInternalServerError
	switch kind {
	case apperror.KindValidation:
		code = http.StatusBadRequest
	case apperror.KindNotFound:
		code = http.StatusNotFound
	case apperror.KindConflict, apperror.KindState:
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		obs.Logger.Error("discovery failed", "err", err)
		return c.JSON(code, echo.Map{"error": "internal error"})
	}
	return c.JSON(code, echo.Map{"error": err.Error(), "kind": kind})
}
