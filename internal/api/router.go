package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-etl-scheduler/docs"
	"go-etl-scheduler/internal/api/handler"
	"go-etl-scheduler/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	r.GET("/schedule", h.Schedule)
	r.GET("/run-now", h.RunNow)
	r.POST("/run-now", h.RunNow)
	r.POST("/run-etl", h.RunETL)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/*", h.GetRun)
	r.GET("/fallback", h.Fallback)
	r.GET("/swagger/*", router.HandlerFunc(httpSwagger.WrapHandler))
}
