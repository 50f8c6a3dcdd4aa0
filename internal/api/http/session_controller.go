package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/service"
)

type SessionController struct {
	sessions *service.SessionService
	photos   *PhotoController
}

func NewSessionController(sessions *service.SessionService, photos *PhotoController) *SessionController {
	return &SessionController{sessions: sessions, photos: photos}
}

type startSessionRequest struct {
	TemplateID string      `json:"template_id" binding:"required"`
	Team       domain.Team `json:"team"`
}

func (h *SessionController) Start(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	v, err := h.sessions.Start(c.Request.Context(), req.TemplateID, req.Team)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *SessionController) Get(c *gin.Context) {
	v, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *SessionController) Discard(c *gin.Context) {
	if err := h.sessions.Discard(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionController) UpdateTask(c *gin.Context) {
	idx, ok := pathIndex(c)
	if !ok {
		return
	}
	var patch service.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid task update: %v", err)
		return
	}
	h.reply(c)(h.sessions.UpdateTask(c.Param("id"), idx, patch))
}

func (h *SessionController) ToggleFlag(c *gin.Context) {
	idx, ok := pathIndex(c)
	if !ok {
		return
	}
	h.reply(c)(h.sessions.ToggleFlag(c.Param("id"), idx))
}

type photoRefRequest struct {
	Ref string `json:"ref" binding:"required"`
}

// AddPhoto attaches an already uploaded reference, or uploads the multipart
// field "file" first. A failed upload leaves the task unchanged.
func (h *SessionController) AddPhoto(c *gin.Context) {
	idx, ok := pathIndex(c)
	if !ok {
		return
	}

	var ref string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if _, err := h.sessions.Get(c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		up, ok := h.photos.upload(c)
		if !ok {
			return
		}
		ref = up.Ref
	} else {
		var req photoRefRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid photo reference: %v", err)
			return
		}
		ref = req.Ref
	}
	h.reply(c)(h.sessions.AddPhoto(c.Param("id"), idx, ref))
}

func (h *SessionController) RemovePhoto(c *gin.Context) {
	idx, ok := pathIndex(c)
	if !ok {
		return
	}
	ref := c.Query("ref")
	if ref == "" {
		badRequest(c, "query parameter ref is required")
		return
	}
	h.reply(c)(h.sessions.RemovePhoto(c.Param("id"), idx, ref))
}

func (h *SessionController) Advance(c *gin.Context) {
	h.reply(c)(h.sessions.Advance(c.Param("id")))
}

func (h *SessionController) Retreat(c *gin.Context) {
	h.reply(c)(h.sessions.Retreat(c.Param("id")))
}

type finishSessionRequest struct {
	Team *domain.Team `json:"team"`
}

// Finish answers 201 once the execution and its report are stored. When only
// the report failed the body still names the stored execution.
func (h *SessionController) Finish(c *gin.Context) {
	var req finishSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request: %v", err)
			return
		}
	}

	res, err := h.sessions.Finish(c.Request.Context(), c.Param("id"), req.Team)
	if err != nil {
		respondFinishError(c, res, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *SessionController) reply(c *gin.Context) func(*service.SessionView, error) {
	return func(v *service.SessionView, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func respondFinishError(c *gin.Context, res *service.FinishResult, err error) {
	if res != nil {
		respondErrorFor(c, err, res.ExecutionID)
		return
	}
	respondError(c, err)
}
