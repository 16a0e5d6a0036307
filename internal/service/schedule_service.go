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
)

type scheduleRepository interface {
	List(ctx context.Context) ([]models.ScheduleItem, error)
	ListFresh(ctx context.Context) ([]models.ScheduleItem, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleItem, error)
	Save(ctx context.Context, item models.ScheduleItem) error
	Delete(ctx context.Context, id string) error
}

type userLookup interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SaveSlotRequest creates or replaces a weekly slot.
type SaveSlotRequest struct {
	ID        string         `json:"id"`
	TeacherID string         `json:"teacherId"`
	DayOfWeek int            `json:"dayOfWeek" validate:"required,school_day"`
	Period    int            `json:"period" validate:"required,min=1,max=5"`
	Session   models.Session `json:"session" validate:"required,session"`
	ClassName string         `json:"className" validate:"required,class_label"`
	Note      string         `json:"note" validate:"max=500"`
}

// ScheduleService manages weekly teaching slots.
type ScheduleService struct {
	repo      scheduleRepository
	users     userLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs the service.
func NewScheduleService(repo scheduleRepository, users userLookup, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, users: users, validator: ensureValidator(validate), logger: logger}
}

// List returns slots matching the filter, sorted.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ScheduleItem, 0, len(items))
	for _, item := range items {
		if filter.TeacherID != "" && item.TeacherID != filter.TeacherID {
			continue
		}
		if filter.DayOfWeek != 0 && item.DayOfWeek != filter.DayOfWeek {
			continue
		}
		if filter.Session != "" && !filter.Session.Includes(item.Session) {
			continue
		}
		out = append(out, item)
	}
	sortSlots(out)
	return out, nil
}

// Mine returns the caller's slots sorted by day, session and period.
func (s *ScheduleService) Mine(ctx context.Context, actor Actor) ([]models.ScheduleItem, error) {
	return s.List(ctx, models.ScheduleFilter{TeacherID: actor.ID})
}

// Save creates a slot or replaces the teacher's slot at the same time.
func (s *ScheduleService) Save(ctx context.Context, actor Actor, req SaveSlotRequest) (*models.ScheduleItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid schedule payload")
	}
	teacherID := req.TeacherID
	if teacherID == "" {
		teacherID = actor.ID
	}
	if teacherID != actor.ID && !actor.IsManagement() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot edit another teacher's schedule")
	}

	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if !teacher.Teaches() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "staff members have no teaching schedule")
	}
	className := strings.TrimSpace(req.ClassName)
	if !canTeach(*teacher, className) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class %s is not assigned to %s", className, teacher.Name))
	}

	items, err := s.repo.ListFresh(ctx)
	if err != nil {
		return nil, err
	}

	var sameSlot, source *models.ScheduleItem
	for i := range items {
		item := &items[i]
		if item.TeacherID == teacherID && item.SameSlot(req.DayOfWeek, req.Period, req.Session) {
			sameSlot = item
		}
		if req.ID != "" && item.ID == req.ID {
			source = item
		}
		if item.TeacherID != teacherID && className != models.HomeroomLabel &&
			item.ClassName == className && item.SameSlot(req.DayOfWeek, req.Period, req.Session) {
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("class %s is already taught by %s at that time", className, item.TeacherName))
		}
	}
	if source != nil && source.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "slot belongs to another teacher")
	}

	id := uuid.NewString()
	switch {
	case sameSlot != nil:
		id = sameSlot.ID
	case source != nil:
		id = source.ID
	}

	item := models.ScheduleItem{
		ID:          id,
		TeacherID:   teacherID,
		TeacherName: teacher.Name,
		DayOfWeek:   req.DayOfWeek,
		Period:      req.Period,
		Session:     req.Session,
		Subject:     slotSubject(className, teacher.Subject),
		ClassName:   className,
		Note:        strings.TrimSpace(req.Note),
	}
	if err := s.repo.Save(ctx, item); err != nil {
		return nil, err
	}
	// Moving a slot onto an occupied one replaces the target and drops the source.
	if source != nil && sameSlot != nil && source.ID != sameSlot.ID {
		if err := s.repo.Delete(ctx, source.ID); err != nil {
			s.logger.Warn("failed to remove moved slot", zap.String("slot_id", source.ID), zap.Error(err))
		}
	}
	return &item, nil
}

// Delete removes a slot. Owners and TCM/TP may delete.
func (s *ScheduleService) Delete(ctx context.Context, actor Actor, id string) error {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanModerate(item.TeacherID) {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete another teacher's slot")
	}
	return s.repo.Delete(ctx, id)
}

func canTeach(teacher models.User, className string) bool {
	if className == models.HomeroomLabel {
		return teacher.IsChuNhiem
	}
	return teacher.HasClass(className)
}

func slotSubject(className, fallback string) string {
	if className == models.HomeroomLabel {
		return "HĐTN"
	}
	if subject := models.SubjectOf(className); subject != "" {
		return subject
	}
	return fallback
}

// slotsOn returns the teacher's items on a school day matching the session selector.
func slotsOn(items []models.ScheduleItem, teacherID string, day int, session models.Session) []models.ScheduleItem {
	out := make([]models.ScheduleItem, 0)
	for _, item := range items {
		if item.TeacherID != teacherID || item.DayOfWeek != day {
			continue
		}
		if session != "" && !session.Includes(item.Session) {
			continue
		}
		out = append(out, item)
	}
	sortSlots(out)
	return out
}

func sortSlots(items []models.ScheduleItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.Session.Order() != b.Session.Order() {
			return a.Session.Order() < b.Session.Order()
		}
		return a.Period < b.Period
	})
}

// busyAt reports whether the teacher holds a slot at (day, period, session).
func busyAt(items []models.ScheduleItem, teacherID string, day, period int, session models.Session) bool {
	for _, item := range items {
		if item.TeacherID == teacherID && item.SameSlot(day, period, session) {
			return true
		}
	}
	return false
}
