package handler

import "github.com/gin-gonic/gin"

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Upload  *UploadHandler
	Preview *PreviewHandler
	Reports *ReportHandler
	Metrics *MetricsHandler
}

// RegisterRoutes mounts the public API on r.
func RegisterRoutes(r gin.IRouter, h Handlers) {
	r.GET("/", h.Metrics.Root)
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group("/api")
	api.GET("/health", h.Metrics.ServiceHealth)
	api.GET("/metrics/summary", h.Metrics.Summary)

	upload := api.Group("/upload")
	upload.POST("/subjects", h.Upload.UploadSubjects)
	upload.POST("/student-info", h.Upload.UploadStudentInfo)
	upload.GET("/status", h.Upload.Status)
	upload.DELETE("/clear", h.Upload.Clear)

	preview := api.Group("/preview")
	preview.GET("/subjects", h.Preview.Subjects)
	preview.GET("/student/:roll_no", h.Preview.Student)
	preview.PUT("/student/:roll_no", h.Preview.UpdateStudent)
	preview.DELETE("/student/:roll_no", h.Preview.RemoveStudent)
	preview.GET("/backlog", h.Preview.Backlog)
	preview.PUT("/backlog/:roll_no", h.Preview.UpdateBacklog)
	preview.GET("/export.csv", h.Preview.ExportCSV)

	reports := api.Group("/reports")
	reports.POST("/generate", h.Reports.Generate)
	reports.GET("/download/:filename", h.Reports.Download)
	reports.GET("/download-zip", h.Reports.DownloadZip)
	reports.GET("/list", h.Reports.List)
	reports.GET("/preview-html/:roll_no", h.Reports.PreviewHTML)
	reports.DELETE("/clear", h.Reports.Clear)
}
