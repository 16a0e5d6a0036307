package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

const (
	settingClientID = "google_client_id"
	clientIDSuffix  = ".apps.googleusercontent.com"
)

type settingRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ClientIDSetting reports the effective OAuth client id and its origin.
type ClientIDSetting struct {
	ClientID string `json:"clientId"`
	Source   string `json:"source"`
}

// UpdateClientIDRequest replaces the override. An empty value clears it.
type UpdateClientIDRequest struct {
	ClientID string `json:"clientId"`
}

// SettingService manages operator overrides on top of static config.
type SettingService struct {
	repo            settingRepository
	defaultClientID string
	logger          *zap.Logger
}

// NewSettingService constructs the service.
func NewSettingService(repo settingRepository, defaultClientID string, logger *zap.Logger) *SettingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingService{repo: repo, defaultClientID: defaultClientID, logger: logger}
}

// ClientID returns the override when set, otherwise the configured value.
func (s *SettingService) ClientID(ctx context.Context) (*ClientIDSetting, error) {
	value, ok, err := s.repo.Get(ctx, settingClientID)
	if err != nil {
		s.logger.Warn("setting lookup failed, using config", zap.String("key", settingClientID), zap.Error(err))
	}
	if ok && value != "" {
		return &ClientIDSetting{ClientID: value, Source: "override"}, nil
	}
	return &ClientIDSetting{ClientID: s.defaultClientID, Source: "config"}, nil
}

// UpdateClientID stores or clears the override. Main admins only.
func (s *SettingService) UpdateClientID(ctx context.Context, actor Actor, req UpdateClientIDRequest) (*ClientIDSetting, error) {
	if err := requireMainAdmin(actor); err != nil {
		return nil, err
	}
	value := strings.TrimSpace(req.ClientID)
	if value == "" {
		if err := s.repo.Delete(ctx, settingClientID); err != nil {
			return nil, appErrors.Internal(err, "failed to clear client id")
		}
		s.logger.Info("client id override cleared", zap.String("actor", actor.Username))
		return s.ClientID(ctx)
	}
	if !strings.HasSuffix(value, clientIDSuffix) || len(value) == len(clientIDSuffix) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "client id must end with "+clientIDSuffix)
	}
	if err := s.repo.Set(ctx, settingClientID, value); err != nil {
		return nil, appErrors.Internal(err, "failed to store client id")
	}
	s.logger.Info("client id override updated", zap.String("actor", actor.Username))
	return &ClientIDSetting{ClientID: value, Source: "override"}, nil
}
