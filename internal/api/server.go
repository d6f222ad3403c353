// Package api exposes candidates, analytics, settings and notifications over
// HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fmuoria/candidate-screener/internal/models"
	"github.com/fmuoria/candidate-screener/internal/pipeline"
	"github.com/fmuoria/candidate-screener/internal/settings"
)

// CandidateStore is the store surface the handlers need
type CandidateStore interface {
	All() []models.Candidate
	Get(id string) (models.Candidate, bool)
	Update(ctx context.Context, c models.Candidate) (models.Candidate, error)
	AddNote(ctx context.Context, id, note string) (models.Candidate, error)
	Remove(ctx context.Context, id string) bool
	Degraded() bool
}

// SettingsModel is the settings surface the handlers need
type SettingsModel interface {
	Current() models.ScoringWeights
	Validate(draft models.ScoringWeights) settings.Report
	Commit(ctx context.Context, draft models.ScoringWeights) error
	Reset(ctx context.Context) (models.ScoringWeights, error)
}

// Notifications lists and dismisses user-facing messages
type Notifications interface {
	List() []models.Notification
	Dismiss(id string)
}

// Ingester scores uploaded files and waits for the batch to finish
type Ingester interface {
	Ingest(ctx context.Context, files []models.FileHandle) (pipeline.Result, error)
}

// Server handles HTTP requests
type Server struct {
	store         CandidateStore
	settings      SettingsModel
	notifications Notifications
	ingester      Ingester
	logger        *zap.Logger
	now           func() time.Time
}

// NewServer creates a new API server
func NewServer(store CandidateStore, settings SettingsModel, notifications Notifications, ingester Ingester, logger *zap.Logger) *Server {
	return &Server{
		store:         store,
		settings:      settings,
		notifications: notifications,
		ingester:      ingester,
		logger:        logger,
		now:           time.Now,
	}
}

// Router returns the HTTP router
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(zapLoggerMiddleware(s.logger), gin.Recovery())

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)

	candidates := r.Group("/candidates")
	candidates.GET("", s.listCandidates)
	candidates.POST("/upload", s.uploadCandidates)
	candidates.GET("/export", s.exportCandidates)
	candidates.GET("/:id", s.getCandidate)
	candidates.PUT("/:id", s.updateCandidate)
	candidates.DELETE("/:id", s.deleteCandidate)
	candidates.POST("/:id/notes", s.addNote)

	r.GET("/analytics", s.getAnalytics)

	cfg := r.Group("/settings")
	cfg.GET("", s.getSettings)
	cfg.PUT("", s.putSettings)
	cfg.POST("/validate", s.validateSettings)
	cfg.POST("/reset", s.resetSettings)

	r.GET("/notifications", s.listNotifications)
	r.DELETE("/notifications/:id", s.dismissNotification)

	return r
}

// handleRoot provides API information
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Candidate Screener",
		"endpoints": gin.H{
			"GET /candidates":         "List candidates (search, band, sort)",
			"POST /candidates/upload": "Upload resumes for scoring",
			"GET /candidates/export":  "Export candidates as csv or xlsx",
			"GET /analytics":          "Dashboard metrics",
			"GET|PUT /settings":       "Scoring weights",
			"GET /notifications":      "Active notifications",
			"GET /health":             "Health check",
		},
	})
}

// handleHealth reports liveness and whether persistence is degraded
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	if s.store.Degraded() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
