package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/github-review-sync/internal/domain"
	apperrors "github.com/kurihiro0119/github-review-sync/internal/errors"
	"github.com/kurihiro0119/github-review-sync/internal/review"
	"github.com/kurihiro0119/github-review-sync/internal/syncer"
)

// Cursors exposes the persisted progress of a repository
type Cursors interface {
	LastCommit(ctx context.Context, repo *domain.Repository) (string, error)
	CommentPage(ctx context.Context, repo *domain.Repository) (int, error)
	Reset(ctx context.Context, repo *domain.Repository) error
}

// Handler handles API requests
type Handler struct {
	service review.Service
	syncer  syncer.Syncer
	cursors Cursors
}

// NewHandler creates a new API handler
func NewHandler(service review.Service, sync syncer.Syncer, cursors Cursors) *Handler {
	return &Handler{
		service: service,
		syncer:  sync,
		cursors: cursors,
	}
}

// GetCommits returns the commits after a cursor without moving it
// GET /api/v1/repos/:owner/:repo/commits?since=&merge=&pull=
func (h *Handler) GetCommits(c *gin.Context) {
	repo, ok := repository(c)
	if !ok {
		return
	}

	opts := review.CommitsOptions{
		From:         c.Query("since"),
		SkipIdentity: c.Query("merge") == "false",
		SkipPull:     c.Query("pull") == "false",
	}

	commits, err := h.service.CommitsSince(c.Request.Context(), repo, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": nonNil(commits),
	})
}

// GetComments returns one page of commit comments without moving the page cursor
// GET /api/v1/repos/:owner/:repo/comments?page=
func (h *Handler) GetComments(c *gin.Context) {
	repo, ok := repository(c)
	if !ok {
		return
	}

	page := 0
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, apperrors.NewBadRequestError("page must be a positive integer"))
			return
		}
		page = n
	}

	comments, err := h.service.CommentsAt(c.Request.Context(), repo, page)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": nonNil(comments),
	})
}

// GetCursor returns the persisted progress of a repository
// GET /api/v1/repos/:owner/:repo/cursor
func (h *Handler) GetCursor(c *gin.Context) {
	repo, ok := repository(c)
	if !ok {
		return
	}

	lastCommit, err := h.cursors.LastCommit(c.Request.Context(), repo)
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := h.cursors.CommentPage(c.Request.Context(), repo)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"repo":         repo.FullName,
			"last_commit":  lastCommit,
			"comment_page": page,
		},
	})
}

// ResetCursor forgets the persisted progress of a repository
// DELETE /api/v1/repos/:owner/:repo/cursor
func (h *Handler) ResetCursor(c *gin.Context) {
	repo, ok := repository(c)
	if !ok {
		return
	}

	if err := h.cursors.Reset(c.Request.Context(), repo); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SyncCommits runs a commit pass and returns its commits
// POST /api/v1/repos/:owner/:repo/sync/commits
func (h *Handler) SyncCommits(c *gin.Context) {
	repo, ok := repository(c)
	if !ok {
		return
	}

	var delivered []*domain.CommitRecord
	pass, err := h.syncer.SyncCommits(c.Request.Context(), repo, func(_ context.Context, _ *domain.Repository, commits []*domain.CommitRecord) error {
		delivered = commits
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pass": pass,
		"data": nonNil(delivered),
	})
}

// SyncComments runs a comment pass and returns its comments
// POST /api/v1/repos/:owner/:repo/sync/comments
func (h *Handler) SyncComments(c *gin.Context) {
	repo, ok := repository(c)
	if !ok {
		return
	}

	var delivered []*domain.CommentRecord
	pass, err := h.syncer.SyncComments(c.Request.Context(), repo, func(_ context.Context, _ *domain.Repository, _ int, comments []*domain.CommentRecord) error {
		delivered = comments
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pass": pass,
		"data": nonNil(delivered),
	})
}

// HealthCheck returns the health status
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func repository(c *gin.Context) (*domain.Repository, bool) {
	repo, err := domain.NewRepository(c.Param("owner") + "/" + c.Param("repo"))
	if err != nil {
		respondError(c, apperrors.NewBadRequestError(err.Error()))
		return nil, false
	}
	return repo, true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		case apperrors.ErrCodeLocked:
			status = http.StatusConflict
		case apperrors.ErrCodeRemoteLookupFailed:
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		},
	})
}
