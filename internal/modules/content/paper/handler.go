package paper

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paperchain/core/internal/modules/processing/analysis"
	"github.com/paperchain/core/internal/pkg/response"
	"github.com/paperchain/core/internal/repository"
)

// Handler handles paper and review HTTP requests.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts paper routes onto the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	papers := rg.Group("/papers")

	papers.GET("", h.list)
	papers.POST("", h.submit)
	papers.GET("/:id", h.get)
	papers.POST("/:id/analyze", h.analyze)
	papers.GET("/:id/reviews", h.listReviews)
	papers.POST("/:id/reviews", h.createReview)
}

// list GET /papers
func (h *Handler) list(c *gin.Context) {
	papers, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.InternalErrorMsg(c, "Failed to fetch papers", err)
		return
	}
	response.OK(c, papers)
}

// get GET /papers/:id
func (h *Handler) get(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}
	paper, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPaperNotFound) {
			response.NotFound(c, "Paper not found")
			return
		}
		response.InternalErrorMsg(c, "Failed to fetch paper", err)
		return
	}
	response.OK(c, paper)
}

// submit POST /papers
func (h *Handler) submit(c *gin.Context) {
	var dto SubmitPaperDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	paper, err := h.svc.Submit(c.Request.Context(), dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			response.Unauthorized(c, "Invalid signature")
		case errors.Is(err, repository.ErrEmptyWallet):
			response.BadRequest(c, "Wallet address is required")
		default:
			response.InternalErrorMsg(c, "Failed to submit paper", err)
		}
		return
	}
	response.Created(c, paper)
}

// analyze POST /papers/:id/analyze
func (h *Handler) analyze(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}
	res, err := h.svc.Reanalyze(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPaperNotFound) {
			response.NotFound(c, "Paper not found")
			return
		}
		if errors.Is(err, analysis.ErrNoModel) {
			response.InternalErrorMsg(c, "AI analysis is not configured", nil)
			return
		}
		response.InternalErrorMsg(c, "Failed to analyze paper", err)
		return
	}
	response.OK(c, res)
}

// listReviews GET /papers/:id/reviews
func (h *Handler) listReviews(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}
	reviews, err := h.svc.Reviews(c.Request.Context(), id)
	if err != nil {
		response.InternalErrorMsg(c, "Failed to fetch reviews", err)
		return
	}
	response.OK(c, reviews)
}

// createReview POST /papers/:id/reviews
func (h *Handler) createReview(c *gin.Context) {
	id, ok := paperID(c)
	if !ok {
		return
	}
	var dto CreateReviewDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	review, err := h.svc.Review(c.Request.Context(), id, dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrPaperNotFound):
			response.NotFound(c, "Paper not found")
		case errors.Is(err, ErrReviewerNotFound):
			response.NotFound(c, "Reviewer not found")
		case errors.Is(err, ErrSelfReview):
			response.BadRequest(c, "Authors cannot review their own paper")
		case errors.Is(err, repository.ErrEmptyWallet):
			response.BadRequest(c, "Wallet address is required")
		default:
			response.InternalErrorMsg(c, "Failed to submit review", err)
		}
		return
	}
	response.Created(c, review)
}

func paperID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "Invalid paper id")
		return 0, false
	}
	return uint(id), true
}
