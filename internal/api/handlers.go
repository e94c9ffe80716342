package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"script_ai_server/internal/storage"
	"script_ai_server/internal/types"
	"script_ai_server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ScriptGenerator is the pipeline the handlers drive. *ai.Generator implements it.
type ScriptGenerator interface {
	Generate(ctx context.Context, req types.GenerationRequest) types.GenerationResult
}

// ProjectStore persists and serves generated projects. *storage.ProjectStore implements it.
type ProjectStore interface {
	SaveProject(ctx context.Context, project string, files []types.GeneratedFile) (int, error)
	Exists(project string) bool
	ListFiles(project string) ([]storage.FileInfo, error)
	Open(filePath string) (afero.File, os.FileInfo, error)
	WriteZip(project string, w io.Writer) error
}

// APIHandler holds dependencies for API endpoints.
type APIHandler struct {
	generator   ScriptGenerator
	store       ProjectStore
	frontendDir string
	logger      zerolog.Logger
}

// NewAPIHandler initializes a new API handler with its dependencies.
func NewAPIHandler(generator ScriptGenerator, store ProjectStore, frontendDir string, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		generator:   generator,
		store:       store,
		frontendDir: frontendDir,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// --- Structs for API Requests/Responses ---

type GenerateRequest struct {
	Stack       string `json:"stack"`
	Description string `json:"description"`
}

type GenerateResponse struct {
	Message     string `json:"message"`
	ProjectName string `json:"project_name"`
}

type ProjectFilesResponse struct {
	ProjectName string             `json:"project_name"`
	Files       []storage.FileInfo `json:"files"`
}

const (
	msgMissingParams    = "Missing required parameters"
	msgGenerationFailed = "AI failed to generate a script."
	msgGenerated        = "Script generated successfully! Click below to download."
	msgProjectNotFound  = "Project not found."
	msgFileNotFound     = "File not found."
)

// log returns the request-scoped logger set by AccessLog, or the handler's own.
func (h *APIHandler) log(c *gin.Context) *zerolog.Logger {
	if l := zerolog.Ctx(c.Request.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.logger
}

// --- API Handlers ---

// POST /generate
func (h *APIHandler) GenerateScript(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingParams})
		return
	}
	stack := strings.TrimSpace(req.Stack)
	description := strings.TrimSpace(req.Description)
	if stack == "" || description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingParams})
		return
	}

	log := h.log(c)
	projectName := utils.ProjectName(description)
	log.Info().Str("project", projectName).Str("stack", stack).Msg("received generation request")

	result := h.generator.Generate(c.Request.Context(), types.GenerationRequest{
		Description: description,
		Stack:       stack,
	})
	if !result.OK() || len(result.Files) == 0 {
		log.Error().Str("project", projectName).Str("reason", result.Error).Msg("script generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgGenerationFailed})
		return
	}

	written, err := h.store.SaveProject(c.Request.Context(), projectName, result.Files)
	if err != nil || written == 0 {
		log.Error().Err(err).Str("project", projectName).Int("written", written).Msg("failed to store generated files")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgGenerationFailed})
		return
	}

	log.Info().Str("project", projectName).Int("files", written).Msg("script generation successful")
	c.JSON(http.StatusOK, GenerateResponse{Message: msgGenerated, ProjectName: projectName})
}

// GET /generated_scripts/*filepath
func (h *APIHandler) DownloadFile(c *gin.Context) {
	filePath := strings.TrimPrefix(c.Param("filepath"), "/")

	f, info, err := h.store.Open(filePath)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": msgFileNotFound})
			return
		}
		h.log(c).Error().Err(err).Str("path", filePath).Msg("failed to open generated file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file."})
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", attachment(info.Name()))
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

// GET /download/:project
func (h *APIHandler) DownloadProjectZip(c *gin.Context) {
	project := c.Param("project")
	if !h.store.Exists(project) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgProjectNotFound})
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", attachment(project+".zip"))
	c.Status(http.StatusOK)
	if err := h.store.WriteZip(project, c.Writer); err != nil {
		// Headers are already out, the client sees a truncated archive.
		h.log(c).Error().Err(err).Str("project", project).Msg("failed to stream project zip")
		_ = c.Error(err)
	}
}

// GET /projects/:project
func (h *APIHandler) ListProjectFiles(c *gin.Context) {
	project := c.Param("project")
	files, err := h.store.ListFiles(project)
	if err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) || errors.Is(err, storage.ErrInvalidName) {
			c.JSON(http.StatusNotFound, gin.H{"error": msgProjectNotFound})
			return
		}
		h.log(c).Error().Err(err).Str("project", project).Msg("failed to list project files")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list project files."})
		return
	}
	c.JSON(http.StatusOK, ProjectFilesResponse{ProjectName: project, Files: files})
}

// GET /
func (h *APIHandler) Index(c *gin.Context) {
	index := filepath.Join(h.frontendDir, "templates", "index.html")
	if _, err := os.Stat(index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Frontend not available."})
		return
	}
	c.File(index)
}

// GET /health
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
