package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Options are the pick lists shown by the frontend.
type Options struct {
	GLNames []string `json:"gl_names"`
	PMTypes []string `json:"pm_types"`
}

type OptionsController struct {
	opts Options
}

func NewOptionsController(opts Options) *OptionsController {
	if opts.GLNames == nil {
		opts.GLNames = []string{}
	}
	if opts.PMTypes == nil {
		opts.PMTypes = []string{}
	}
	return &OptionsController{opts: opts}
}

func (o *OptionsController) Get(c *gin.Context) {
	c.JSON(http.StatusOK, o.opts)
}
