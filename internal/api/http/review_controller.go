package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/service"
)

type ReviewController struct {
	review *service.ReviewService
}

func NewReviewController(review *service.ReviewService) *ReviewController {
	return &ReviewController{review: review}
}

func (h *ReviewController) List(c *gin.Context) {
	pms, err := h.review.List(c.Request.Context(), c.Query("gl"), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	if pms == nil {
		pms = []domain.PMOverview{}
	}
	c.JSON(http.StatusOK, pms)
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *ReviewController) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	pm, err := h.review.Transition(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pm)
}
