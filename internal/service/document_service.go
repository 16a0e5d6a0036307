package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/gdrive"
	"github.com/noah-isme/dept-portal-api/pkg/jobs"
	"github.com/noah-isme/dept-portal-api/pkg/textutil"
)

// UploadJobType names queued Drive uploads.
const UploadJobType = "document_upload"

type documentRepository interface {
	List(ctx context.Context) ([]models.Document, error)
	FindByID(ctx context.Context, id string) (*models.Document, error)
	Save(ctx context.Context, doc models.Document) error
	Delete(ctx context.Context, id string) error
}

type stagingStorage interface {
	SaveStream(filename string, r io.Reader) (int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type driveFiles interface {
	Upload(ctx context.Context, name, mimeType string, content io.Reader, size int64, progress gdrive.ProgressFunc) (*gdrive.File, error)
	Delete(ctx context.Context, fileID string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// UploadConfig bounds accepted files.
type UploadConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// UploadDocumentRequest is the metadata part of a document upload.
type UploadDocumentRequest struct {
	Title    string `form:"title" json:"title" validate:"required,max=200"`
	Category string `form:"category" json:"category" validate:"required"`
	Type     string `form:"type" json:"type" validate:"required"`
	Grade    int    `form:"grade" json:"grade" validate:"required,min=6,max=9"`
}

// ReviewDocumentRequest sets a document's review outcome.
type ReviewDocumentRequest struct {
	Status models.DocStatus `json:"status" validate:"required"`
	Note   string           `json:"note" validate:"max=1000"`
}

// UploadJob is the queued payload of a document upload.
type UploadJob struct {
	UploadID   string
	StagedPath string
	DriveName  string
	MimeType   string
	Size       int64
	Document   models.Document
}

// DocumentService manages the document repository.
type DocumentService struct {
	repo      documentRepository
	staging   stagingStorage
	drive     driveFiles
	queue     jobDispatcher
	tracker   *UploadTracker
	validator *validator.Validate
	logger    *zap.Logger
	cfg       UploadConfig
}

// NewDocumentService constructs the service. drive and queue may be nil when
// Drive is not configured; uploads then fail with ErrUnavailable.
func NewDocumentService(repo documentRepository, staging stagingStorage, drive driveFiles, queue jobDispatcher, tracker *UploadTracker, cfg UploadConfig, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = NewUploadTracker(nil)
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 25 << 20
	}
	return &DocumentService{
		repo:      repo,
		staging:   staging,
		drive:     drive,
		queue:     queue,
		tracker:   tracker,
		validator: ensureValidator(validate),
		logger:    logger,
		cfg:       cfg,
	}
}

// List filters documents. Title search ignores accents.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if filter.Category != "" && d.Category != filter.Category {
			continue
		}
		if filter.Type != "" && filter.Type != models.AnyDocumentType && d.Type != filter.Type {
			continue
		}
		if filter.Grade != 0 && d.Grade != filter.Grade {
			continue
		}
		if filter.AuthorID != "" && d.AuthorID != filter.AuthorID {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !textutil.ContainsFold(d.Title, filter.Search) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UploadDate > out[j].UploadDate })
	page, pagination := models.Paginate(out, filter.Page, filter.PageSize)
	return page, pagination, nil
}

// Upload stages the file and queues it for Drive. The returned status is
// polled through UploadStatus.
func (s *DocumentService) Upload(ctx context.Context, actor Actor, req UploadDocumentRequest, fileName, mimeType string, size int64, content io.Reader) (*models.UploadStatus, error) {
	if s.drive == nil || s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "document uploads are not configured")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid document payload")
	}
	if !contains(models.DocumentCategories, req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document category")
	}
	if !contains(models.DocumentTypes, req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document type")
	}
	if size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileSize))
	}
	mimeType = baseMIME(mimeType)
	if len(s.cfg.AllowedMIMEs) > 0 && !contains(s.cfg.AllowedMIMEs, mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not allowed", mimeType))
	}

	uploadID := uuid.NewString()
	baseName := filepath.Base(strings.TrimSpace(fileName))
	staged := fmt.Sprintf("%s/%s", uploadID, safeStagingName(baseName))
	written, err := s.staging.SaveStream(staged, io.LimitReader(content, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to stage upload")
	}
	if written > s.cfg.MaxFileSize {
		_ = s.staging.Delete(staged)
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileSize))
	}

	doc := models.Document{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(req.Title),
		Category:   req.Category,
		Type:       req.Type,
		Grade:      req.Grade,
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		Status:     models.DocPending,
		FileSize:   written,
		FileMime:   mimeType,
	}
	status := models.UploadStatus{
		ID:       uploadID,
		State:    models.UploadQueued,
		FileName: baseName,
		OwnerID:  actor.ID,
	}
	s.tracker.Put(ctx, status)

	job := jobs.Job{ID: uploadID, Type: UploadJobType, Payload: UploadJob{
		UploadID:   uploadID,
		StagedPath: staged,
		DriveName:  DriveFileName(doc.Category, doc.Title, baseName),
		MimeType:   mimeType,
		Size:       written,
		Document:   doc,
	}}
	if err := s.queue.Enqueue(job); err != nil {
		_ = s.staging.Delete(staged)
		s.tracker.Update(ctx, uploadID, func(st *models.UploadStatus) {
			st.State = models.UploadFailed
			st.Error = "failed to enqueue upload"
		})
		return nil, appErrors.Internal(err, "failed to enqueue upload")
	}
	s.logger.Info("document upload queued", zap.String("upload_id", uploadID), zap.Int64("bytes", written))
	return &status, nil
}

// UploadStatus returns the progress of an upload owned by the caller.
func (s *DocumentService) UploadStatus(ctx context.Context, actor Actor, id string) (*models.UploadStatus, error) {
	status, err := s.tracker.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanModerate(status.OwnerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "upload belongs to another member")
	}
	return status, nil
}

// Review sets the status and note of a document. TCM only.
func (s *DocumentService) Review(ctx context.Context, actor Actor, id string, req ReviewDocumentRequest) (*models.Document, error) {
	if actor.Role != models.RoleTCM {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only TCM may review documents")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid review payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document status")
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Status = req.Status
	doc.ReviewNote = strings.TrimSpace(req.Note)
	if err := s.repo.Save(ctx, *doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes the record, then the Drive file on a best-effort basis.
func (s *DocumentService) Delete(ctx context.Context, actor Actor, id string) error {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if doc.AuthorID != actor.ID && actor.Role != models.RoleTCM {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author or TCM may delete a document")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if doc.FileID != "" && s.drive != nil {
		if err := s.drive.Delete(ctx, doc.FileID); err != nil {
			s.logger.Warn("failed to delete drive file", zap.String("file_id", doc.FileID), zap.Error(err))
		}
	}
	return nil
}

// CleanupStaging removes staged files left behind for longer than ttl.
func (s *DocumentService) CleanupStaging(ttl time.Duration) ([]string, error) {
	if s.staging == nil {
		return nil, nil
	}
	return s.staging.CleanupOlderThan(ttl)
}

// UploadWorker moves staged files to Drive and records the document.
type UploadWorker struct {
	docs       documentRepository
	staging    stagingStorage
	drive      driveFiles
	tracker    *UploadTracker
	metrics    *MetricsService
	calendar   *Calendar
	logger     *zap.Logger
	maxRetries int
}

// NewUploadWorker constructs a worker.
func NewUploadWorker(docs documentRepository, staging stagingStorage, drive driveFiles, tracker *UploadTracker, metrics *MetricsService, calendar *Calendar, maxRetries int, logger *zap.Logger) *UploadWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calendar == nil {
		calendar = NewCalendar(DefaultTimezone)
	}
	return &UploadWorker{
		docs:       docs,
		staging:    staging,
		drive:      drive,
		tracker:    tracker,
		metrics:    metrics,
		calendar:   calendar,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *UploadWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(UploadJob)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID))
	}
	w.tracker.Update(ctx, payload.UploadID, func(st *models.UploadStatus) {
		st.State = models.UploadUploading
		st.Progress = 0
		st.Error = ""
	})

	file, err := w.staging.Open(payload.StagedPath)
	if err != nil {
		return jobs.Permanent(fmt.Errorf("open staged upload: %w", err))
	}
	defer file.Close() //nolint:errcheck

	progress := func(sent, total int64) {
		if total <= 0 {
			return
		}
		pct := int(sent * 100 / total)
		if pct > 99 {
			pct = 99
		}
		w.tracker.Update(ctx, payload.UploadID, func(st *models.UploadStatus) { st.Progress = pct })
	}
	uploaded, err := w.drive.Upload(ctx, payload.DriveName, payload.MimeType, file, payload.Size, progress)
	if err != nil {
		w.markRetry(ctx, payload.UploadID, job.Attempt, err)
		return err
	}

	doc := payload.Document
	doc.FileID = uploaded.ID
	doc.FileURL = uploaded.URL
	doc.Status = models.DocPending
	doc.UploadDate = w.calendar.Today()
	if uploaded.Size > 0 {
		doc.FileSize = uploaded.Size
	}
	if err := w.docs.Save(ctx, doc); err != nil {
		if delErr := w.drive.Delete(ctx, uploaded.ID); delErr != nil {
			w.logger.Warn("failed to remove orphaned drive file", zap.String("file_id", uploaded.ID), zap.Error(delErr))
		}
		w.markRetry(ctx, payload.UploadID, job.Attempt, err)
		return err
	}

	if err := w.staging.Delete(payload.StagedPath); err != nil {
		w.logger.Warn("failed to remove staged upload", zap.String("path", payload.StagedPath), zap.Error(err))
	}
	w.tracker.Update(ctx, payload.UploadID, func(st *models.UploadStatus) {
		st.State = models.UploadDone
		st.Progress = 100
		st.DocumentID = doc.ID
		st.Error = ""
	})
	w.metrics.ObserveUpload(doc.FileSize, nil)
	w.logger.Info("document uploaded", zap.String("document_id", doc.ID), zap.String("file_id", uploaded.ID))
	return nil
}

// OnFailure marks an upload failed once retries are exhausted.
func (w *UploadWorker) OnFailure(job jobs.Job, err error) {
	ctx := context.Background()
	if payload, ok := job.Payload.(UploadJob); ok {
		if delErr := w.staging.Delete(payload.StagedPath); delErr != nil {
			w.logger.Warn("failed to remove staged upload", zap.String("path", payload.StagedPath), zap.Error(delErr))
		}
	}
	w.tracker.Update(ctx, job.ID, func(st *models.UploadStatus) {
		st.State = models.UploadFailed
		st.Error = err.Error()
	})
	w.metrics.ObserveUpload(0, err)
}

func (w *UploadWorker) markRetry(ctx context.Context, uploadID string, attempt int, err error) {
	w.tracker.Update(ctx, uploadID, func(st *models.UploadStatus) {
		st.State = models.UploadQueued
		st.Progress = 0
		st.Error = fmt.Sprintf("attempt %d failed: %v", attempt+1, err)
	})
}

var driveNameReplacer = strings.NewReplacer(
	"/", "-", `\`, "-", "?", "-", "%", "-", "*", "-", ":", "-", "|", "-", `"`, "-", "<", "-", ">", "-",
)

// DriveFileName builds "[category] title_filename" without characters Drive
// or desktop sync clients reject.
func DriveFileName(category, title, fileName string) string {
	return driveNameReplacer.Replace(fmt.Sprintf("[%s] %s_%s", category, title, fileName))
}

func safeStagingName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	slug := textutil.Slug(strings.TrimSuffix(name, filepath.Ext(name)), 80)
	if slug == "" {
		slug = "file"
	}
	return slug + ext
}

func baseMIME(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
