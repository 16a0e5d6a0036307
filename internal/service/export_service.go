package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/export"
	"github.com/noah-isme/dept-portal-api/pkg/storage"
	"github.com/noah-isme/dept-portal-api/pkg/textutil"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult describes a generated file and its signed download link.
type ExportResult struct {
	FileName     string    `json:"fileName"`
	RelativePath string    `json:"-"`
	Token        string    `json:"token"`
	URL          string    `json:"url"`
	ContentType  string    `json:"contentType"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// ExportService renders datasets into local files behind signed links.
type ExportService struct {
	storage fileStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{storage: files, signer: signer, logger: logger, cfg: cfg}
}

// Publish renders data with exporter, stores the file under dir and signs a
// download link named after title.
func (s *ExportService) Publish(dir, title string, exporter export.Exporter, data export.Dataset) (*ExportResult, error) {
	payload, err := exporter.Render(data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}

	slug := textutil.Slug(title, 60)
	if slug == "" {
		slug = "export"
	}
	fileName := fmt.Sprintf("%s.%s", slug, exporter.Extension())
	relPath := fmt.Sprintf("%s/%s_%s_%s", dir, time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8], fileName)
	relPath, err = s.storage.Save(relPath, payload)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(fileName, relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign export link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export generated", zap.String("path", relPath), zap.Int("bytes", len(payload)))
	return &ExportResult{
		FileName:     fileName,
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		ContentType:  exporter.ContentType(),
		ExpiresAt:    expiresAt,
	}, nil
}

// Resolve validates a download token and opens the file it names.
func (s *ExportService) Resolve(token string) (*storage.SignedFile, *os.File, error) {
	signed, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download link")
	}
	file, err := s.storage.Open(signed.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer exists")
		}
		return nil, nil, appErrors.Internal(err, "failed to open export")
	}
	return signed, file, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func exporterFor(format, sheetName string) (export.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "xlsx":
		return export.NewXLSXExporter(sheetName), nil
	case "csv":
		return export.NewCSVExporter(), nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be xlsx or csv")
	}
}
