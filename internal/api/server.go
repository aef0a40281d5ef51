package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/david/contract-map/internal/config"
	"github.com/david/contract-map/internal/db"
	"github.com/david/contract-map/internal/ingest"
	"github.com/david/contract-map/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// ContractStore is the read side of the published snapshot plus the admin
// writes the server exposes.
type ContractStore interface {
	ListContracts(ctx context.Context, params db.ListParams) ([]models.Contract, error)
	LastRefresh(ctx context.Context) (models.RefreshMetadata, error)
	RecentRuns(ctx context.Context, limit int) ([]models.RefreshRun, error)
	SetPreferences(ctx context.Context, userID string, prefs models.Preferences) error
}

type Refresher interface {
	Refresh(ctx context.Context, trigger string) (ingest.RefreshResult, error)
	Preview(ctx context.Context, opts ingest.PreviewOptions) ([]models.Contract, error)
}

type Server struct {
	Store     ContractStore
	Refresher Refresher
	Echo      *echo.Echo

	// one refresh at a time; a second trigger gets 409
	refreshMu sync.Mutex

	configuredSecret string
	secretOnce       sync.Once
	secret           string
	secretErr        error

	log *logrus.Entry
}

func NewServer(cfg *config.Config, store ContractStore, refresher Refresher) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := cfg.CORSOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Store:            store,
		Refresher:        refresher,
		Echo:             e,
		configuredSecret: strings.TrimSpace(cfg.AdminSecret),
		log:              logrus.WithField("component", "api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/contracts", s.handleListContracts)
	api.GET("/refresh/last", s.handleLastRefresh)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/refresh", s.handleRefresh)
	// Live previews spend the upstream API key and geocoder quota.
	admin.GET("/contracts/live", s.handleLiveContracts)
	admin.GET("/admin/runs", s.handleRecentRuns)
	admin.PUT("/admin/users/:id/preferences", s.handleSetPreferences)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListContracts(c echo.Context) error {
	params := db.ListParams{Category: c.QueryParam("category")}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o > 0 {
		params.Offset = o
	}

	contracts, err := s.Store.ListContracts(c.Request().Context(), params)
	if err != nil {
		s.log.WithError(err).Error("list contracts failed")
		return c.JSON(http.StatusInternalServerError, errorBody("failed to read contracts", ingest.KindStorage))
	}
	return c.JSON(http.StatusOK, contracts)
}

func (s *Server) handleLiveContracts(c echo.Context) error {
	opts := ingest.PreviewOptions{State: c.QueryParam("state")}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		opts.Limit = l
	}

	contracts, err := s.Refresher.Preview(c.Request().Context(), opts)
	if err != nil {
		return s.refreshFailure(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"count":     len(contracts),
		"contracts": contracts,
	})
}

func (s *Server) handleLastRefresh(c echo.Context) error {
	meta, err := s.Store.LastRefresh(c.Request().Context())
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no refresh has completed yet"})
	}
	if err != nil {
		s.log.WithError(err).Error("read refresh metadata failed")
		return c.JSON(http.StatusInternalServerError, errorBody("failed to read refresh metadata", ingest.KindStorage))
	}
	return c.JSON(http.StatusOK, meta)
}

func (s *Server) handleRefresh(c echo.Context) error {
	if !s.refreshMu.TryLock() {
		return c.JSON(http.StatusConflict, map[string]any{"success": false, "error": "a refresh is already running"})
	}
	defer s.refreshMu.Unlock()

	trigger := c.QueryParam("trigger")
	if trigger == "" {
		trigger = "api"
	}
	result, err := s.Refresher.Refresh(c.Request().Context(), trigger)
	if err != nil {
		return s.refreshFailure(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":          true,
		"runId":            result.RunID,
		"contractsUpdated": result.ContractsUpdated,
		"processingTime":   result.ProcessingTimeMs,
	})
}

func (s *Server) handleRecentRuns(c echo.Context) error {
	limit := 10
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	runs, err := s.Store.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("read refresh runs failed")
		return c.JSON(http.StatusInternalServerError, errorBody("failed to read refresh runs", ingest.KindStorage))
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleSetPreferences(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user id required"})
	}
	var prefs models.Preferences
	if err := c.Bind(&prefs); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid preferences body"})
	}
	for i, st := range prefs.States {
		prefs.States[i] = strings.ToUpper(strings.TrimSpace(st))
	}

	if err := s.Store.SetPreferences(c.Request().Context(), userID, prefs); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("write preferences failed")
		return c.JSON(http.StatusInternalServerError, errorBody("failed to save preferences", ingest.KindStorage))
	}
	return c.JSON(http.StatusOK, prefs)
}

// refreshFailure maps a pipeline error onto a status code and error payload.
func (s *Server) refreshFailure(c echo.Context, err error) error {
	kind := ingest.KindOf(err)
	status := http.StatusInternalServerError
	if kind == ingest.KindUpstream {
		status = http.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	s.log.WithError(err).WithField("kind", kind).Error("refresh request failed")
	return c.JSON(status, errorBody(err.Error(), kind))
}

func errorBody(message string, kind ingest.ErrorKind) map[string]any {
	return map[string]any{"success": false, "error": message, "kind": kind}
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := s.adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func (s *Server) adminSecret() (string, error) {
	s.secretOnce.Do(func() {
		if s.configuredSecret != "" {
			s.secret = s.configuredSecret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			s.secretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}
		s.secret = base64.RawURLEncoding.EncodeToString(buf)
		s.log.Warn("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if s.secretErr != nil {
		return "", s.secretErr
	}
	if s.secret == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}
	return s.secret, nil
}
