package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/textutil"
)

type userRepository interface {
	List(ctx context.Context) ([]models.User, error)
	ListFresh(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Save(ctx context.Context, user models.User) error
	Delete(ctx context.Context, id string) error
}

// RegisterRequest is the public sign-up payload.
type RegisterRequest struct {
	Username        string               `json:"username" validate:"required,min=3,max=64"`
	Password        string               `json:"password" validate:"required,min=6"`
	Name            string               `json:"name" validate:"required"`
	Email           string               `json:"email" validate:"omitempty,email"`
	Role            models.UserRole      `json:"role" validate:"required,oneof=GV NV"`
	StaffPosition   models.StaffPosition `json:"staffPosition"`
	AssignedClasses []string             `json:"assignedClasses" validate:"dive,class_label"`
	GradeLevel      []int                `json:"gradeLevel" validate:"dive,min=6,max=9"`
	IsChuNhiem      bool                 `json:"isChuNhiem"`
}

// UpdateUserRequest replaces the provided fields. Nil fields are kept.
type UpdateUserRequest struct {
	Name            *string               `json:"name" validate:"omitempty,min=1"`
	Email           *string               `json:"email" validate:"omitempty,email"`
	Subject         *string               `json:"subject"`
	StaffPosition   *models.StaffPosition `json:"staffPosition"`
	AssignedClasses *[]string             `json:"assignedClasses"`
	GradeLevel      *[]int                `json:"gradeLevel"`
	IsChuNhiem      *bool                 `json:"isChuNhiem"`
	Duties          *[]string             `json:"duties"`
}

func (r UpdateUserRequest) touchesAssignment() bool {
	return r.Subject != nil || r.StaffPosition != nil || r.AssignedClasses != nil ||
		r.GradeLevel != nil || r.IsChuNhiem != nil || r.Duties != nil
}

// ClassConflict describes a class already held by another teacher.
type ClassConflict struct {
	Label    string `json:"label"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// UserService handles registration, approval and assignment of members.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: ensureValidator(validate), logger: logger}
}

// ConflictFor returns the other approved user whose assigned classes contain
// label exactly, or nil.
func ConflictFor(users []models.User, selfID, label string) *models.User {
	for i := range users {
		u := users[i]
		if u.ID == selfID || !u.IsApproved {
			continue
		}
		if u.HasClass(label) {
			return &users[i]
		}
	}
	return nil
}

// ClassOptions lists every assignable class label.
func (s *UserService) ClassOptions() []string {
	return models.ClassOptions()
}

// Register creates an unapproved account.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid registration payload")
	}

	users, err := s.repo.ListFresh(ctx)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	for _, u := range users {
		if strings.EqualFold(strings.TrimSpace(u.Username), username) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		}
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := models.User{
		ID:            uuid.NewString(),
		Username:      username,
		Password:      hash,
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		Role:          req.Role,
		StaffPosition: models.StaffNone,
		IsApproved:    false,
		Duties:        []string{},
	}

	if req.Role == models.RoleNV {
		user.Subject = models.OfficeSubject
		user.AssignedClasses = []string{}
		user.StaffPosition = models.StaffEquipment
		if req.StaffPosition.Valid() && req.StaffPosition != models.StaffNone {
			user.StaffPosition = req.StaffPosition
		}
	} else {
		classes, err := normalizeClasses(req.AssignedClasses)
		if err != nil {
			return nil, err
		}
		if len(classes) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a teacher must register at least one class")
		}
		if err := checkConflicts(users, user.ID, classes); err != nil {
			return nil, err
		}
		user.AssignedClasses = classes
		user.Subject = models.SubjectOf(classes[0])
		user.GradeLevel = req.GradeLevel
		user.IsChuNhiem = req.IsChuNhiem
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// List returns paginated users without passwords.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	matched := make([]models.User, 0, len(users))
	for _, u := range users {
		if filter.Approved != nil && u.IsApproved != *filter.Approved {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Search != "" && !textutil.ContainsFold(u.Name, filter.Search) && !textutil.ContainsFold(u.Username, filter.Search) {
			continue
		}
		matched = append(matched, u.Sanitized())
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return textutil.Fold(matched[i].Name) < textutil.Fold(matched[j].Name)
	})
	page, pagination := models.Paginate(matched, filter.Page, filter.PageSize)
	return page, pagination, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// Approve activates a pending account. Its classes must still be free.
func (s *UserService) Approve(ctx context.Context, actor Actor, id string) (*models.User, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	users, err := s.repo.ListFresh(ctx)
	if err != nil {
		return nil, err
	}
	user := findUser(users, id)
	if user == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if err := checkConflicts(users, user.ID, user.AssignedClasses); err != nil {
		return nil, err
	}
	user.IsApproved = true
	if err := s.repo.Save(ctx, *user); err != nil {
		return nil, err
	}
	s.logger.Info("user approved", zap.String("user_id", id), zap.String("actor_id", actor.ID))
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// Update changes profile and assignment fields. Members may edit their own
// name and email; assignment fields need TCM or TP.
func (s *UserService) Update(ctx context.Context, actor Actor, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid update payload")
	}
	if !actor.IsManagement() {
		if actor.ID != id {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot edit another member")
		}
		if req.touchesAssignment() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only TCM or TP may change assignments")
		}
	}

	users, err := s.repo.ListFresh(ctx)
	if err != nil {
		return nil, err
	}
	user := findUser(users, id)
	if user == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Subject != nil {
		user.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.StaffPosition != nil {
		if !req.StaffPosition.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown staff position")
		}
		user.StaffPosition = *req.StaffPosition
	}
	if req.AssignedClasses != nil {
		classes, err := normalizeClasses(*req.AssignedClasses)
		if err != nil {
			return nil, err
		}
		if user.Role == models.RoleNV && len(classes) > 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "staff members cannot hold classes")
		}
		if err := checkConflicts(users, user.ID, classes); err != nil {
			return nil, err
		}
		user.AssignedClasses = classes
	}
	if req.GradeLevel != nil {
		for _, g := range *req.GradeLevel {
			if g < models.MinGrade || g > models.MaxGrade {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid grade %d", g))
			}
		}
		user.GradeLevel = *req.GradeLevel
	}
	if req.IsChuNhiem != nil {
		if user.Role == models.RoleNV && *req.IsChuNhiem {
			return nil, appErrors.Clone(appErrors.ErrValidation, "staff members cannot be homeroom teachers")
		}
		user.IsChuNhiem = *req.IsChuNhiem
	}
	if req.Duties != nil {
		user.Duties = trimList(*req.Duties)
	}

	if err := s.repo.Save(ctx, *user); err != nil {
		return nil, err
	}
	s.logger.Info("user updated", zap.String("user_id", id), zap.String("actor_id", actor.ID))
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// ChangeRole switches a member's role and resets the fields tied to it.
func (s *UserService) ChangeRole(ctx context.Context, actor Actor, id string, role models.UserRole) (*models.User, error) {
	if err := requireMainAdmin(actor); err != nil {
		return nil, err
	}
	parsed, ok := models.ParseRole(string(role))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := user.Role
	user.Role = parsed
	switch {
	case parsed == models.RoleNV:
		user.AssignedClasses = []string{}
		user.IsChuNhiem = false
		user.Subject = models.OfficeSubject
		user.StaffPosition = models.StaffEquipment
	case previous == models.RoleNV:
		user.StaffPosition = models.StaffNone
	}

	if err := s.repo.Save(ctx, *user); err != nil {
		return nil, err
	}
	s.logger.Info("user role changed",
		zap.String("user_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(parsed)),
		zap.String("actor_id", actor.ID),
	)
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// Delete removes a member. Main admins cannot remove themselves.
func (s *UserService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := requireMainAdmin(actor); err != nil {
		return err
	}
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete your own account")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("actor_id", actor.ID))
	return nil
}

// CheckConflict returns the approved member already holding label, or nil.
func (s *UserService) CheckConflict(ctx context.Context, selfID, label string) (*models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	conflict := ConflictFor(users, selfID, strings.TrimSpace(label))
	if conflict == nil {
		return nil, nil
	}
	sanitized := conflict.Sanitized()
	return &sanitized, nil
}

func checkConflicts(users []models.User, selfID string, classes []string) error {
	for _, label := range classes {
		if other := ConflictFor(users, selfID, label); other != nil {
			return appErrors.WithDetails(appErrors.ErrConflict,
				fmt.Sprintf("class %s is already assigned to %s", label, other.Name),
				ClassConflict{Label: label, UserID: other.ID, UserName: other.Name})
		}
	}
	return nil
}

// normalizeClasses trims and de-duplicates labels and rejects malformed ones.
func normalizeClasses(labels []string) ([]string, error) {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			continue
		}
		if _, err := models.ParseClassLabel(label); err != nil {
			return nil, appErrors.Validation(err, fmt.Sprintf("invalid class label %q", label))
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out, nil
}

func findUser(users []models.User, id string) *models.User {
	for i := range users {
		if users[i].ID == id {
			return &users[i]
		}
	}
	return nil
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
