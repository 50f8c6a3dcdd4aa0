package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"ozzus/pm-tracker/internal/api/http/middleware"
)

type Controllers struct {
	Health     *HealthController
	Options    *OptionsController
	Admin      *AdminController
	Catalog    *CatalogController
	Photos     *PhotoController
	Sessions   *SessionController
	Executions *ExecutionController
	Review     *ReviewController
}

type RouterConfig struct {
	CORSOrigins []string
	// FilesRoot is served under /files when blobs are kept on local disk.
	FilesRoot string
}

func NewRouter(log *slog.Logger, ctl Controllers, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(log), middleware.Logger(log), middleware.CORS(cfg.CORSOrigins))

	router.GET("/health", ctl.Health.Health)
	router.GET("/status", ctl.Health.Status)
	router.GET("/ready", ctl.Health.Ready)
	router.GET("/info", ctl.Health.Info)

	if cfg.FilesRoot != "" {
		router.Static("/files", cfg.FilesRoot)
	}

	api := router.Group("/api")
	api.GET("/options", ctl.Options.Get)

	admin := api.Group("/admin/pms")
	admin.POST("", ctl.Admin.Upload)
	admin.GET("", ctl.Admin.List)
	admin.DELETE("/:id", ctl.Admin.Delete)
	admin.POST("/:id/template", ctl.Admin.ImportTemplate)

	api.GET("/pms", ctl.Catalog.ListPMs)
	api.POST("/templates", ctl.Catalog.ImportTemplate)
	api.GET("/templates/:id", ctl.Catalog.Template)
	api.POST("/photos", ctl.Photos.Upload)

	sessions := api.Group("/sessions")
	sessions.POST("", ctl.Sessions.Start)
	sessions.GET("/:id", ctl.Sessions.Get)
	sessions.DELETE("/:id", ctl.Sessions.Discard)
	sessions.PATCH("/:id/tasks/:index", ctl.Sessions.UpdateTask)
	sessions.POST("/:id/tasks/:index/flag", ctl.Sessions.ToggleFlag)
	sessions.POST("/:id/tasks/:index/photos", ctl.Sessions.AddPhoto)
	sessions.DELETE("/:id/tasks/:index/photos", ctl.Sessions.RemovePhoto)
	sessions.POST("/:id/advance", ctl.Sessions.Advance)
	sessions.POST("/:id/retreat", ctl.Sessions.Retreat)
	sessions.POST("/:id/finish", ctl.Sessions.Finish)

	executions := api.Group("/executions")
	executions.POST("", ctl.Executions.Create)
	executions.GET("/:id", ctl.Executions.Get)
	executions.POST("/:id/report", ctl.Executions.RetryReport)
	executions.GET("/:id/report", ctl.Executions.DownloadReport)

	gl := api.Group("/gl/pms")
	gl.GET("", ctl.Review.List)
	gl.PATCH("/:id/status", ctl.Review.Transition)

	return router
}
