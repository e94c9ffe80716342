package api

import (
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up the API endpoints and groups them logically.
func RegisterRoutes(router *gin.Engine, h *APIHandler) {

	// --- Frontend ---
	router.GET("/", h.Index)
	if static := filepath.Join(h.frontendDir, "static"); dirExists(static) {
		router.Static("/static", static)
	}

	// --- Script Generation ---
	router.POST("/generate", h.GenerateScript)

	// --- Downloads ---
	router.GET("/generated_scripts/*filepath", h.DownloadFile) // Single file, path relative to the scripts directory
	router.GET("/download/:project", h.DownloadProjectZip)     // Whole project as <project>.zip
	router.GET("/projects/:project", h.ListProjectFiles)

	// --- Operations ---
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
