package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/service"
)

const maxPMDocumentBytes = 50 << 20

type AdminController struct {
	admin *service.AdminService
}

func NewAdminController(admin *service.AdminService) *AdminController {
	return &AdminController{admin: admin}
}

// Upload registers a PM document sent as multipart field "file".
func (a *AdminController) Upload(c *gin.Context) {
	name, data, err := readUpload(c, "file", maxPMDocumentBytes)
	if err != nil {
		respondError(c, err)
		return
	}

	pm, err := a.admin.Register(c.Request.Context(), service.UploadPMRequest{
		FileName:   name,
		Data:       data,
		UploadedBy: c.PostForm("uploaded_by"),
		GLOwner:    c.PostForm("gl_owner"),
		PMType:     c.PostForm("pm_type"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pm)
}

func (a *AdminController) List(c *gin.Context) {
	inactive, _ := strconv.ParseBool(c.Query("include_inactive"))
	pms, err := a.admin.List(c.Request.Context(), inactive)
	if err != nil {
		respondError(c, err)
		return
	}
	if pms == nil {
		pms = []domain.PMOverview{}
	}
	c.JSON(http.StatusOK, pms)
}

func (a *AdminController) Delete(c *gin.Context) {
	if err := a.admin.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportTemplate answers 201 for a new template and 200 when the PM already
// had one.
func (a *AdminController) ImportTemplate(c *gin.Context) {
	var draft domain.TemplateDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid template: %v", err)
		return
	}

	tpl, created, err := a.admin.ImportTemplate(c.Request.Context(), c.Param("id"), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, tpl)
}
