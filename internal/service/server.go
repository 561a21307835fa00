package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uimap/uimap-cli/api/schemas"
	"github.com/uimap/uimap-cli/internal/store"
)

// Server exposes the locator repository over HTTP so the crawl engine (or
// any downstream consumer) can run out of process from the database.
type Server struct {
	repo   schemas.Repository
	router *gin.Engine
	addr   string
	logger *zap.Logger
}

// NewServer builds the router. gin runs in release mode; request logging
// goes through zap instead of gin's default writer.
func NewServer(repo schemas.Repository, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{repo: repo, router: router, addr: addr, logger: logger}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.health)
	s.router.POST("/screens", s.createScreen)
	s.router.GET("/screens", s.listScreens)
	s.router.POST("/add-locator", s.addLocator)
	s.router.GET("/locators", s.listLocators)
	s.router.GET("/locators/latest", s.latestLocators)
	s.router.PATCH("/locators/:id/verify", s.verifyLocator)
	s.router.GET("/sessions", s.listSessions)
	s.router.GET("/session/:id", s.exportSession)
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains with a bounded shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("API server listening", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Handled request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createScreen(c *gin.Context) {
	var screen schemas.Screen
	if err := c.ShouldBindJSON(&screen); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if screen.SessionID == "" || screen.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and url are required"})
		return
	}
	id, err := s.repo.RegisterScreen(c.Request.Context(), screen)
	if err != nil {
		s.fail(c, "register screen", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) listScreens(c *gin.Context) {
	screens, err := s.repo.ListScreens(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		s.fail(c, "list screens", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"screens": screens})
}

func (s *Server) addLocator(c *gin.Context) {
	var el schemas.Element
	if err := c.ShouldBindJSON(&el); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if el.ScreenID == 0 || el.CSSSelector == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "screen_id and css_selector are required"})
		return
	}
	id, err := s.repo.AddElement(c.Request.Context(), el)
	if err != nil {
		s.fail(c, "add locator", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) listLocators(c *gin.Context) {
	elements, err := s.repo.ListElements(c.Request.Context(),
		c.Query("session_id"), c.Query("type"))
	if err != nil {
		s.fail(c, "list locators", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locators": elements})
}

func (s *Server) latestLocators(c *gin.Context) {
	elements, err := s.repo.LatestSessionElements(c.Request.Context())
	if err != nil {
		s.fail(c, "latest locators", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locators": elements})
}

func (s *Server) verifyLocator(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid locator id"})
		return
	}
	var body struct {
		Verified *bool `json:"verified"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Verified == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must carry a verified flag"})
		return
	}
	if err := s.repo.VerifyElement(c.Request.Context(), id, *body.Verified); err != nil {
		s.fail(c, "verify locator", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "verified": *body.Verified})
}

func (s *Server) listSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	sessions, err := s.repo.ListSessions(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, "list sessions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) exportSession(c *gin.Context) {
	export, err := s.repo.ExportContext(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "export session", err)
		return
	}
	c.JSON(http.StatusOK, export)
}

// fail maps repository errors to status codes and logs server-side faults.
func (s *Server) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	s.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
