package services

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

type FileService struct {
	db      *gorm.DB
	access  *AccessService
	storage *LocalStorage
	events  Broadcaster
	maxSize int64
}

func NewFileService(db *gorm.DB, access *AccessService, storage *LocalStorage, events Broadcaster, maxSize int64) *FileService {
	return &FileService{db: db, access: access, storage: storage, events: events, maxSize: maxSize}
}

type UploadFileRequest struct {
	ProjectID string `form:"projectId"`
	TaskID    string `form:"taskId"`
}

type FileListRequest struct {
	ProjectID string `form:"projectId"`
	TaskID    string `form:"taskId"`
}

// Upload checks access to the target project before writing anything to
// disk. A file attached to a task is filed under the task's project.
func (s *FileService) Upload(ctx context.Context, user *models.User, req *UploadFileRequest, header *multipart.FileHeader) (*models.File, error) {
	if header == nil {
		return nil, response.NewBadRequest("No file uploaded")
	}
	if header.Size > s.maxSize {
		return nil, response.NewTooLarge("File too large")
	}

	projectID := req.ProjectID
	if req.TaskID != "" {
		var task models.Task
		if err := s.db.WithContext(ctx).Select("id", "project_id").First(&task, "id = ?", req.TaskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, response.NewNotFound("Task not found")
			}
			return nil, err
		}
		if projectID != "" && projectID != task.ProjectID {
			return nil, response.NewBadRequest("Task does not belong to the given project")
		}
		projectID = task.ProjectID
	}
	if projectID != "" {
		if _, err := s.access.RequireAccess(ctx, user, projectID); err != nil {
			return nil, err
		}
	}

	src, err := header.Open()
	if err != nil {
		return nil, response.NewServerError("failed to read upload", err)
	}
	defer src.Close()

	stored, err := s.storage.Save(src, header.Filename)
	if err != nil {
		return nil, response.NewServerError("failed to store upload", err)
	}

	file := models.File{
		Filename:     stored.Filename,
		OriginalName: header.Filename,
		MimeType:     detectMimeType(header, stored.Path),
		Size:         stored.Size,
		Path:         stored.Path,
		ProjectID:    optionalID(projectID),
		TaskID:       optionalID(req.TaskID),
		UserID:       user.ID,
	}
	db := s.db.WithContext(ctx)
	if err := db.Create(&file).Error; err != nil {
		if rmErr := s.storage.Remove(stored.Path); rmErr != nil {
			logger.Warn().Err(rmErr).Str("path", stored.Path).Msg("failed to remove orphaned upload")
		}
		return nil, err
	}
	if err := db.Preload("User", publicUser).First(&file, "id = ?", file.ID).Error; err != nil {
		return nil, err
	}

	if projectID != "" {
		s.events.Publish(projectID, EventFileUploaded, &file)
	}
	return &file, nil
}

// List returns attachments newest first. Without filters it covers the
// user's visible projects plus their own unattached uploads.
func (s *FileService) List(ctx context.Context, user *models.User, req *FileListRequest) ([]models.File, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&models.File{})

	if req.ProjectID != "" {
		if _, err := s.access.RequireAccess(ctx, user, req.ProjectID); err != nil {
			return nil, err
		}
		query = query.Where("project_id = ?", req.ProjectID)
	}
	if req.TaskID != "" {
		var task models.Task
		if err := db.Select("id", "project_id").First(&task, "id = ?", req.TaskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, response.NewNotFound("Task not found")
			}
			return nil, err
		}
		if req.ProjectID == "" {
			if _, err := s.access.RequireAccess(ctx, user, task.ProjectID); err != nil {
				return nil, err
			}
		}
		query = query.Where("task_id = ?", req.TaskID)
	}
	if req.ProjectID == "" && req.TaskID == "" {
		ids, err := s.access.VisibleProjectIDs(ctx, user)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			query = query.Where("project_id IN ? OR user_id = ?", ids, user.ID)
		} else {
			query = query.Where("user_id = ?", user.ID)
		}
	}

	files := []models.File{}
	err := query.Preload("User", publicUser).Order("created_at DESC").Find(&files).Error
	return files, err
}

// Get returns a file the user may download: their own upload, any file for
// an admin, or a file in a project they can access.
func (s *FileService) Get(ctx context.Context, user *models.User, id string) (*models.File, error) {
	file, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() || file.UserID == user.ID {
		return file, nil
	}
	if file.ProjectID != nil {
		if _, err := s.access.RequireAccess(ctx, user, *file.ProjectID); err != nil {
			return nil, err
		}
		return file, nil
	}
	return nil, response.NewForbidden("Access denied")
}

// Delete removes the row, then the stored bytes. A missing disk object is
// skipped.
func (s *FileService) Delete(ctx context.Context, user *models.User, id string) error {
	file, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	var membership *models.ProjectMember
	if file.ProjectID != nil {
		if access, err := s.access.Load(ctx, user, *file.ProjectID); err == nil {
			membership = access.Membership
		} else if !isNotFound(err) {
			return err
		}
	}
	if !CanDeleteFile(user, file, membership) {
		return response.NewForbidden("Insufficient permissions")
	}

	if err := s.db.WithContext(ctx).Delete(&models.File{}, "id = ?", id).Error; err != nil {
		return err
	}
	if err := s.storage.Remove(file.Path); err != nil {
		logger.Warn().Err(err).Str("file_id", id).Str("path", file.Path).Msg("failed to remove stored file")
	}

	if file.ProjectID != nil {
		s.events.Publish(*file.ProjectID, EventFileDeleted, map[string]string{"fileId": id})
	}
	return nil
}

func (s *FileService) find(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	if err := s.db.WithContext(ctx).First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("File not found")
		}
		return nil, err
	}
	return &file, nil
}

// detectMimeType trusts a specific part header and sniffs the stored bytes
// otherwise.
func detectMimeType(header *multipart.FileHeader, path string) string {
	declared := header.Header.Get("Content-Type")
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return declared
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func isNotFound(err error) bool {
	var appErr *response.AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusNotFound
}
