package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/service"
)

type CatalogController struct {
	catalog *service.CatalogService
}

func NewCatalogController(catalog *service.CatalogService) *CatalogController {
	return &CatalogController{catalog: catalog}
}

func (h *CatalogController) ListPMs(c *gin.Context) {
	pms, err := h.catalog.ListPMs(c.Request.Context(), c.Query("gl"))
	if err != nil {
		respondError(c, err)
		return
	}
	if pms == nil {
		pms = []domain.PMOverview{}
	}
	c.JSON(http.StatusOK, pms)
}

func (h *CatalogController) Template(c *gin.Context) {
	tpl, err := h.catalog.Template(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *CatalogController) ImportTemplate(c *gin.Context) {
	var draft domain.TemplateDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid template: %v", err)
		return
	}
	tpl, err := h.catalog.ImportStandalone(c.Request.Context(), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}
