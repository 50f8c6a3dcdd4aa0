package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ozzus/pm-tracker/internal/service"
)

type PhotoController struct {
	photos *service.PhotoService
}

func NewPhotoController(photos *service.PhotoService) *PhotoController {
	return &PhotoController{photos: photos}
}

func (p *PhotoController) Upload(c *gin.Context) {
	up, ok := p.upload(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, up)
}

func (p *PhotoController) upload(c *gin.Context) (*service.PhotoUpload, bool) {
	name, data, err := readUpload(c, "file", p.photos.MaxBytes())
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	up, err := p.photos.Upload(c.Request.Context(), name, data)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return up, true
}
