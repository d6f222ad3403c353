package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fmuoria/candidate-screener/internal/analytics"
	"github.com/fmuoria/candidate-screener/internal/export"
	"github.com/fmuoria/candidate-screener/internal/models"
	"github.com/fmuoria/candidate-screener/internal/pipeline"
	"github.com/fmuoria/candidate-screener/internal/query"
	"github.com/fmuoria/candidate-screener/internal/settings"
	"github.com/fmuoria/candidate-screener/internal/store"
)

// candidateUpdate is the editable part of a candidate
type candidateUpdate struct {
	Name   string         `json:"name" binding:"required"`
	Email  string         `json:"email"`
	Phone  string         `json:"phone"`
	Score  *int           `json:"score" binding:"required"`
	Skills []models.Skill `json:"skills"`
}

type rejection struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

type failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type uploadResponse struct {
	Submitted       int                `json:"submitted"`
	Committed       []models.Candidate `json:"committed"`
	Rejected        []rejection        `json:"rejected"`
	Failed          []failure          `json:"failed"`
	HighPerformers  int                `json:"highPerformers"`
	AutoShortlisted int                `json:"autoShortlisted"`
}

func parseQuery(c *gin.Context) (query.Query, error) {
	band, err := query.ParseBand(c.Query("band"))
	if err != nil {
		return query.Query{}, err
	}
	sort, err := query.ParseSortKey(c.Query("sort"))
	if err != nil {
		return query.Query{}, err
	}
	return query.Query{SearchTerm: c.Query("search"), Band: band, Sort: sort}, nil
}

// listCandidates handles GET /candidates
func (s *Server) listCandidates(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": query.Apply(s.store.All(), q)})
}

// getCandidate handles GET /candidates/:id
func (s *Server) getCandidate(c *gin.Context) {
	candidate, ok := s.store.Get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "candidate not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate": candidate})
}

// updateCandidate handles PUT /candidates/:id
func (s *Server) updateCandidate(c *gin.Context) {
	var req candidateUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("invalid candidate update", zap.Error(err))
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := s.store.Update(c.Request.Context(), models.Candidate{
		ID:     c.Param("id"),
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Score:  *req.Score,
		Skills: req.Skills,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, "candidate not found")
		return
	case errors.Is(err, store.ErrInvalidCandidate):
		respondError(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("update candidate failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not update candidate")
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate": updated})
}

// deleteCandidate handles DELETE /candidates/:id
func (s *Server) deleteCandidate(c *gin.Context) {
	if !s.store.Remove(c.Request.Context(), c.Param("id")) {
		respondError(c, http.StatusNotFound, "candidate not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// addNote handles POST /candidates/:id/notes
func (s *Server) addNote(c *gin.Context) {
	var req struct {
		Note string `json:"note" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "note is required")
		return
	}

	updated, err := s.store.AddNote(c.Request.Context(), c.Param("id"), req.Note)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, "candidate not found")
		return
	case errors.Is(err, store.ErrInvalidCandidate):
		respondError(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("add note failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not add note")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"candidate": updated})
}

// uploadCandidates handles POST /candidates/upload. The request waits for the
// batch; disconnecting cancels it.
func (s *Server) uploadCandidates(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respondError(c, http.StatusBadRequest, "no files uploaded")
		return
	}

	files := make([]models.FileHandle, 0, len(headers))
	for _, fh := range headers {
		files = append(files, fileHandle(fh))
	}

	result, err := s.ingester.Ingest(c.Request.Context(), files)
	resp := toUploadResponse(result)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, pipeline.ErrNoValidFiles):
		c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, pipeline.ErrNothingScored):
		c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.Is(err, pipeline.ErrStopped):
		respondError(c, http.StatusServiceUnavailable, "ingestion is shutting down")
	case errors.Is(err, context.Canceled):
		s.logger.Info("upload cancelled by client")
		c.Status(499)
	default:
		s.logger.Error("ingest failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not process files")
	}
}

func fileHandle(fh *multipart.FileHeader) models.FileHandle {
	return models.FileHandle{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func toUploadResponse(r pipeline.Result) uploadResponse {
	resp := uploadResponse{
		Submitted:       r.Submitted,
		Committed:       r.Committed,
		Rejected:        make([]rejection, 0, len(r.Rejected)),
		Failed:          make([]failure, 0, len(r.Failed)),
		HighPerformers:  r.HighPerformers,
		AutoShortlisted: r.AutoShortlisted,
	}
	if resp.Committed == nil {
		resp.Committed = []models.Candidate{}
	}
	for _, rej := range r.Rejected {
		resp.Rejected = append(resp.Rejected, rejection{File: rej.File, Reason: rej.Reason, Detail: rej.Detail})
	}
	for _, f := range r.Failed {
		resp.Failed = append(resp.Failed, failure{File: f.File, Error: f.Err.Error()})
	}
	return resp
}

// exportCandidates handles GET /candidates/export
func (s *Server) exportCandidates(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	candidates := query.Apply(s.store.All(), q)

	switch strings.ToLower(c.DefaultQuery("format", "csv")) {
	case "csv":
		c.Header("Content-Disposition", `attachment; filename="candidates.csv"`)
		c.Header("Content-Type", "text/csv")
		if err := export.WriteCSV(c.Writer, candidates); err != nil {
			s.logger.Error("csv export failed", zap.Error(err))
		}
	case "xlsx":
		c.Header("Content-Disposition", `attachment; filename="candidates.xlsx"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := export.WriteExcel(c.Writer, candidates); err != nil {
			s.logger.Error("excel export failed", zap.Error(err))
		}
	default:
		respondError(c, http.StatusBadRequest, "format must be 'csv' or 'xlsx'")
	}
}

// getAnalytics handles GET /analytics
func (s *Server) getAnalytics(c *gin.Context) {
	top := analytics.DefaultTopSkills
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		top = n
	}

	candidates := s.store.All()
	c.JSON(http.StatusOK, gin.H{
		"summary":      analytics.Summarize(candidates, s.now()),
		"distribution": analytics.ScoreDistribution(candidates),
		"skills":       analytics.SkillFrequency(candidates, top),
	})
}

// getSettings handles GET /settings
func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"settings": s.settings.Current()})
}

// putSettings handles PUT /settings
func (s *Server) putSettings(c *gin.Context) {
	var draft models.ScoringWeights
	if err := c.ShouldBindJSON(&draft); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}

	report := s.settings.Validate(draft)
	err := s.settings.Commit(c.Request.Context(), draft)
	var oob *settings.OutOfBoundsError
	switch {
	case errors.As(err, &oob):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": oob.Error(), "report": report})
		return
	case err != nil:
		// committed in memory, not persisted
		s.logger.Warn("settings not persisted", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"settings": s.settings.Current(), "report": report, "persisted": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": s.settings.Current(), "report": report, "persisted": true})
}

// validateSettings handles POST /settings/validate
func (s *Server) validateSettings(c *gin.Context) {
	var draft models.ScoringWeights
	if err := c.ShouldBindJSON(&draft); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": s.settings.Validate(draft)})
}

// resetSettings handles POST /settings/reset
func (s *Server) resetSettings(c *gin.Context) {
	defaults, err := s.settings.Reset(c.Request.Context())
	if err != nil {
		s.logger.Warn("settings reset not persisted", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"settings": defaults, "persisted": err == nil})
}

// listNotifications handles GET /notifications
func (s *Server) listNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": s.notifications.List()})
}

// dismissNotification handles DELETE /notifications/:id. Unknown ids are not
// an error since they may have expired already.
func (s *Server) dismissNotification(c *gin.Context) {
	s.notifications.Dismiss(c.Param("id"))
	c.Status(http.StatusNoContent)
}
