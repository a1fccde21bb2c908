package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/response"
)

// multipartOverhead is the allowance for form fields and part headers on
// top of the file itself.
const multipartOverhead = 64 * 1024

type FileHandler struct {
	fileService *services.FileService
	maxSize     int64
}

func NewFileHandler(fileService *services.FileService, maxSize int64) *FileHandler {
	return &FileHandler{fileService: fileService, maxSize: maxSize}
}

// Upload stores one multipart file, optionally attached to a project or task
// POST /api/files/upload
func (h *FileHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.Error(c, response.NewTooLarge("File too large"))
			return
		case errors.Is(err, http.ErrMissingFile):
			header = nil
		default:
			response.Error(c, response.NewBadRequest("Invalid multipart body"))
			return
		}
	}

	req := services.UploadFileRequest{
		ProjectID: c.PostForm("projectId"),
		TaskID:    c.PostForm("taskId"),
	}

	file, err := h.fileService.Upload(c.Request.Context(), middleware.CurrentUser(c), &req, header)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, file)
}

// List returns files, optionally filtered by project or task
// GET /api/files
func (h *FileHandler) List(c *gin.Context) {
	var req services.FileListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, response.BindError(err))
		return
	}

	files, err := h.fileService.List(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, files)
}

// Download streams a file under its original name
// GET /api/files/:id/download
func (h *FileHandler) Download(c *gin.Context) {
	file, err := h.fileService.Get(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	if _, err := os.Stat(file.Path); err != nil {
		response.Error(c, response.NewNotFound("File not found"))
		return
	}

	if file.MimeType != "" {
		c.Header("Content-Type", file.MimeType)
	}
	c.FileAttachment(file.Path, file.OriginalName)
}

// Delete removes the file record and its stored bytes
// DELETE /api/files/:id
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.fileService.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "File deleted successfully"})
}
