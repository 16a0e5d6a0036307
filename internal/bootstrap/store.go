// Package bootstrap opens the backends shared by the API server and the
// operator CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/noah-isme/dept-portal-api/pkg/cache"
	"github.com/noah-isme/dept-portal-api/pkg/config"
	"github.com/noah-isme/dept-portal-api/pkg/database"
	"github.com/noah-isme/dept-portal-api/pkg/gdrive"
	"github.com/noah-isme/dept-portal-api/pkg/googleauth"
	"github.com/noah-isme/dept-portal-api/pkg/recordstore"
)

// Closer releases a backend connection.
type Closer func() error

func noopCloser() error { return nil }

// OpenStore builds the record store selected by STORE_DRIVER. The store is
// wrapped with observer when one is given.
func OpenStore(ctx context.Context, cfg *config.Config, observer recordstore.Observer, logger *zap.Logger) (recordstore.Store, Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store  recordstore.Store
		closer Closer = noopCloser
	)
	switch cfg.Store.Driver {
	case config.StoreDriverEndpoint:
		endpoint, err := recordstore.NewEndpointStore(cfg.Store.EndpointURL, cfg.Store.Timeout)
		if err != nil {
			return nil, nil, err
		}
		store = endpoint
	case config.StoreDriverSheets:
		client, err := googleauth.NewClient(ctx, cfg.Google, googleauth.ScopeSpreadsheets)
		if err != nil {
			return nil, nil, err
		}
		api, err := sheets.NewService(ctx, option.WithHTTPClient(client))
		if err != nil {
			return nil, nil, fmt.Errorf("init sheets client: %w", err)
		}
		sheetStore := recordstore.NewSheetsStore(api, cfg.Store.SpreadsheetID)
		if err := sheetStore.EnsureSheets(ctx); err != nil {
			return nil, nil, err
		}
		store = sheetStore
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pgStore := recordstore.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store = pgStore
		closer = db.Close
	case config.StoreDriverMemory:
		logger.Warn("using in-memory record store; data is lost on restart")
		store = recordstore.NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	logger.Info("record store ready", zap.String("driver", cfg.Store.Driver))
	return recordstore.Instrument(store, observer), closer, nil
}

// OpenRedis connects to Redis when configured. A nil client means caching
// and settings stay in memory.
func OpenRedis(cfg *config.Config, logger *zap.Logger) *redis.Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cache.Configured(cfg.Redis) {
		return nil
	}
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache", zap.Error(err))
		return nil
	}
	return client
}

// OpenDrive returns the Drive uploader, or nil when credentials are absent.
func OpenDrive(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gdrive.Uploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Google.HasCredentials() {
		logger.Warn("google credentials missing, document uploads disabled")
		return nil, nil
	}
	client, err := googleauth.NewClient(ctx, cfg.Google, googleauth.ScopeDriveFile)
	if err != nil {
		return nil, err
	}
	api, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("init drive client: %w", err)
	}
	return gdrive.NewUploader(api, cfg.Google.DriveFolderID, cfg.Google.UploadChunkSize), nil
}
