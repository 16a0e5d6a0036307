package service

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/textutil"
)

type demoRepository interface {
	List(ctx context.Context) ([]models.TeachingDemo, error)
	FindByID(ctx context.Context, id string) (*models.TeachingDemo, error)
	Save(ctx context.Context, demo models.TeachingDemo) error
	Delete(ctx context.Context, id string) error
}

// RegisterDemoRequest books a demonstration lesson in one of the teacher's slots.
type RegisterDemoRequest struct {
	TeacherID  string         `json:"teacherId"`
	Week       int            `json:"week" validate:"required,min=1,max=52"`
	Date       string         `json:"date" validate:"required,iso_date"`
	Period     int            `json:"period" validate:"required,min=1,max=5"`
	Session    models.Session `json:"session" validate:"required,session"`
	ClassName  string         `json:"className"`
	TCT        int            `json:"tct" validate:"min=0"`
	LessonName string         `json:"lessonName" validate:"required,max=300"`
	ReporterID string         `json:"reporterId"`
	Note       string         `json:"note" validate:"max=1000"`
}

// UpdateDemoStatusRequest changes the outcome flags. Nil fields are kept.
type UpdateDemoStatusRequest struct {
	IsCancelled *bool   `json:"isCancelled"`
	IsLate      *bool   `json:"isLate"`
	Note        *string `json:"note" validate:"omitempty,max=1000"`
}

// DemoService manages teaching demo registrations.
type DemoService struct {
	repo      demoRepository
	schedule  scheduleReader
	users     userLookup
	calendar  *Calendar
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDemoService constructs the service.
func NewDemoService(repo demoRepository, schedule scheduleReader, users userLookup, calendar *Calendar, validate *validator.Validate, logger *zap.Logger) *DemoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calendar == nil {
		calendar = NewCalendar(DefaultTimezone)
	}
	return &DemoService{repo: repo, schedule: schedule, users: users, calendar: calendar, validator: ensureValidator(validate), logger: logger}
}

// Slots returns the teacher's lessons on the date.
func (s *DemoService) Slots(ctx context.Context, teacherID, date string) ([]models.ScheduleItem, error) {
	day, err := s.calendar.SchoolDay(date)
	if err != nil {
		return nil, err
	}
	items, err := s.schedule.List(ctx)
	if err != nil {
		return nil, err
	}
	return slotsOn(items, teacherID, day, ""), nil
}

// Available lists approved teachers free at the slot, excluding the demo teacher.
func (s *DemoService) Available(ctx context.Context, date string, period int, session models.Session, teacherID string) ([]models.User, error) {
	if !session.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session must be Morning or Afternoon")
	}
	day, err := s.calendar.SchoolDay(date)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.schedule.List(ctx)
	if err != nil {
		return nil, err
	}
	free := availableTeachers(users, items, day, period, session, teacherID)
	out := make([]models.User, 0, len(free))
	for _, u := range free {
		out = append(out, u.Sanitized())
	}
	return out, nil
}

// Register books a demo and stores the availability snapshot.
func (s *DemoService) Register(ctx context.Context, actor Actor, req RegisterDemoRequest) (*models.DemoView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid demo payload")
	}
	teacherID := req.TeacherID
	if teacherID == "" {
		teacherID = actor.ID
	}
	if teacherID != actor.ID && !actor.IsManagement() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot register a demo for another teacher")
	}
	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if req.ReporterID != "" {
		if _, err := s.users.FindByID(ctx, req.ReporterID); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "reporter not found")
		}
	}

	date := s.calendar.Normalize(req.Date)
	day, err := s.calendar.SchoolDay(date)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.schedule.List(ctx)
	if err != nil {
		return nil, err
	}

	className := strings.TrimSpace(req.ClassName)
	var slot *models.ScheduleItem
	for _, item := range slotsOn(items, teacherID, day, req.Session) {
		if item.Period == req.Period && (className == "" || item.ClassName == className) {
			item := item
			slot = &item
			break
		}
	}
	if slot == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the teacher has no lesson in that slot")
	}

	free := availableTeachers(users, items, day, req.Period, req.Session, teacherID)
	snapshot := make([]string, 0, len(free))
	for _, u := range free {
		snapshot = append(snapshot, u.ID)
	}

	demo := models.TeachingDemo{
		ID:                uuid.NewString(),
		Week:              req.Week,
		Date:              date,
		DayOfWeek:         day,
		Period:            req.Period,
		Session:           req.Session,
		ClassName:         slot.ClassName,
		TeacherID:         teacherID,
		TeacherName:       teacher.Name,
		TCT:               req.TCT,
		LessonName:        strings.TrimSpace(req.LessonName),
		ReporterID:        req.ReporterID,
		Note:              strings.TrimSpace(req.Note),
		AvailableTeachers: snapshot,
		CreatedAt:         s.calendar.Timestamp(),
	}
	if err := s.repo.Save(ctx, demo); err != nil {
		return nil, err
	}
	s.logger.Info("demo registered", zap.String("demo_id", demo.ID), zap.String("teacher_id", teacherID))
	return &models.DemoView{TeachingDemo: demo, CurrentAvailable: snapshot}, nil
}

// List returns demos with availability recomputed from the current schedule.
func (s *DemoService) List(ctx context.Context, filter models.DemoFilter) ([]models.DemoView, error) {
	demos, err := s.filtered(ctx, filter)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.schedule.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.DemoView, 0, len(demos))
	for _, d := range demos {
		day := d.DayOfWeek
		if parsed, err := s.calendar.SchoolDay(d.Date); err == nil {
			day = parsed
		}
		free := availableTeachers(users, items, day, d.Period, d.Session, d.TeacherID)
		current := make([]string, 0, len(free))
		for _, u := range free {
			current = append(current, u.ID)
		}
		out = append(out, models.DemoView{TeachingDemo: d, CurrentAvailable: current})
	}
	return out, nil
}

// UpdateStatus sets the cancelled/late flags and note. TCM or TP only.
func (s *DemoService) UpdateStatus(ctx context.Context, actor Actor, id string, req UpdateDemoStatusRequest) (*models.TeachingDemo, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid status payload")
	}
	demo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.IsCancelled != nil {
		demo.IsCancelled = *req.IsCancelled
	}
	if req.IsLate != nil {
		demo.IsLate = *req.IsLate
	}
	if req.Note != nil {
		demo.Note = strings.TrimSpace(*req.Note)
	}
	demo.Date = s.calendar.Normalize(demo.Date)
	if err := s.repo.Save(ctx, *demo); err != nil {
		return nil, err
	}
	return demo, nil
}

// Delete removes a demo. The teacher or TCM/TP may delete.
func (s *DemoService) Delete(ctx context.Context, actor Actor, id string) error {
	demo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanModerate(demo.TeacherID) {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete another teacher's demo")
	}
	return s.repo.Delete(ctx, id)
}

// Stats counts demos overall and per teacher.
func (s *DemoService) Stats(ctx context.Context, filter models.DemoFilter) (*models.DemoStats, error) {
	demos, err := s.filtered(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats := &models.DemoStats{PerTeacher: []models.DemoTeacherStat{}}
	perTeacher := map[string]*models.DemoTeacherStat{}
	for _, d := range demos {
		stats.Total++
		entry, ok := perTeacher[d.TeacherID]
		if !ok {
			entry = &models.DemoTeacherStat{TeacherID: d.TeacherID, TeacherName: d.TeacherName}
			perTeacher[d.TeacherID] = entry
		}
		entry.Count++
		if d.IsCancelled {
			stats.Cancelled++
			entry.Cancelled++
		}
		if d.IsLate {
			stats.Late++
			entry.Late++
		}
	}
	for _, entry := range perTeacher {
		stats.PerTeacher = append(stats.PerTeacher, *entry)
	}
	sort.Slice(stats.PerTeacher, func(i, j int) bool {
		a, b := stats.PerTeacher[i], stats.PerTeacher[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return textutil.Fold(a.TeacherName) < textutil.Fold(b.TeacherName)
	})
	return stats, nil
}

func (s *DemoService) filtered(ctx context.Context, filter models.DemoFilter) ([]models.TeachingDemo, error) {
	demos, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.TeachingDemo, 0, len(demos))
	for _, d := range demos {
		d.Date = s.calendar.Normalize(d.Date)
		if filter.Week != 0 && d.Week != filter.Week {
			continue
		}
		if filter.TeacherID != "" && d.TeacherID != filter.TeacherID {
			continue
		}
		if !s.calendar.InRange(d.Date, filter.From, filter.To) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Period < out[j].Period
	})
	return out, nil
}

// availableTeachers returns approved non-staff users other than excludeID
// with no slot at (day, period, session).
func availableTeachers(users []models.User, items []models.ScheduleItem, day, period int, session models.Session, excludeID string) []models.User {
	out := make([]models.User, 0)
	for _, u := range users {
		if u.ID == excludeID || !u.IsApproved || !u.Teaches() {
			continue
		}
		if busyAt(items, u.ID, day, period, session) {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return textutil.Fold(out[i].Name) < textutil.Fold(out[j].Name) })
	return out
}
