package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

type authUserRepository interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Save(ctx context.Context, user models.User) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	AdminUsernames    []string
}

// AuthService provides authentication use cases.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{repo: repo, validator: ensureValidator(validate), logger: logger, config: config}
}

// IsMainAdmin reports whether username is one of the configured main admins.
func (s *AuthService) IsMainAdmin(username string) bool {
	for _, admin := range s.config.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(admin), strings.TrimSpace(username)) {
			return true
		}
	}
	return false
}

// Login authenticates a user and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid login payload")
	}

	user, err := s.findByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
		}
		return nil, err
	}

	ok, legacy := matchPassword(user.Password, req.Password)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}
	if !user.IsApproved {
		return nil, appErrors.Clone(appErrors.ErrNotApproved, "account is waiting for approval")
	}

	if legacy {
		s.upgradePassword(ctx, *user, req.Password)
	}

	accessToken, _, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    time.Now().UTC(),
		User:        user.Sanitized(),
		IsMainAdmin: s.IsMainAdmin(user.Username),
	}, nil
}

// Me returns the current user without the password.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// ChangePassword changes the password for the given user ID.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid change password payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if ok, _ := matchPassword(user.Password, req.OldPassword); !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	newHash, err := hashPassword(req.NewPassword)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	user.Password = newHash
	if err := s.repo.Save(ctx, *user); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

// EnsureBootstrapAdmin creates an approved TCM account when username is set
// and no user holds it yet.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, username, password, name string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}
	if _, err := s.findByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, appErrors.ErrNotFound) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if name == "" {
		name = username
	}
	admin := models.User{
		ID:              uuid.NewString(),
		Username:        username,
		Password:        hash,
		Name:            name,
		Role:            models.RoleTCM,
		Subject:         models.Subjects[0],
		StaffPosition:   models.StaffNone,
		IsApproved:      true,
		AssignedClasses: []string{},
		Duties:          []string{},
	}
	if err := s.repo.Save(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("username", username))
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) findByUsername(ctx context.Context, username string) (*models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	for i := range users {
		if strings.EqualFold(strings.TrimSpace(users[i].Username), username) {
			return &users[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
}

func (s *AuthService) upgradePassword(ctx context.Context, user models.User, plain string) {
	hash, err := hashPassword(plain)
	if err != nil {
		s.logger.Warn("failed to hash legacy password", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.Password = hash
	if err := s.repo.Save(ctx, user); err != nil {
		s.logger.Warn("failed to upgrade legacy password", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	s.logger.Info("legacy password upgraded", zap.String("user_id", user.ID))
}

func (s *AuthService) generateAccessToken(user *models.User) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Name:     user.Name,
		Admin:    s.IsMainAdmin(user.Username),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// matchPassword compares against a bcrypt hash, or against a legacy
// plaintext value in constant time. legacy is true for the latter.
func matchPassword(stored, given string) (ok bool, legacy bool) {
	if stored == "" {
		return false, false
	}
	if _, err := bcrypt.Cost([]byte(stored)); err == nil {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil, false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1, true
}
