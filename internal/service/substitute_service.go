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

type substituteRepository interface {
	List(ctx context.Context) ([]models.SubstituteRequest, error)
	ListFresh(ctx context.Context) ([]models.SubstituteRequest, error)
	FindFresh(ctx context.Context, id string) (*models.SubstituteRequest, error)
	Save(ctx context.Context, req models.SubstituteRequest) error
	Delete(ctx context.Context, id string) error
}

type scheduleReader interface {
	List(ctx context.Context) ([]models.ScheduleItem, error)
	ListFresh(ctx context.Context) ([]models.ScheduleItem, error)
}

// RegisterAbsenceRequest opens one substitute request per affected slot.
type RegisterAbsenceRequest struct {
	Date         string         `json:"date" validate:"required,iso_date"`
	Session      models.Session `json:"session" validate:"required,oneof=Morning Afternoon AllDay"`
	Reason       string         `json:"reason" validate:"required"`
	AllOrNothing bool           `json:"allOrNothing"`
}

// ReviewSubstituteRequest carries a TCM/TP decision. Nil fields are kept.
type ReviewSubstituteRequest struct {
	Status    *models.SubstituteStatus `json:"status"`
	IsFlagged *bool                    `json:"isFlagged"`
	AdminNote *string                  `json:"adminNote" validate:"omitempty,max=1000"`
}

// SlotOutcome reports why a slot produced no request.
type SlotOutcome struct {
	Slot  models.ScheduleItem `json:"slot"`
	Error string              `json:"error"`
}

// AbsenceResult aggregates the per-slot outcome of an absence registration.
type AbsenceResult struct {
	Created    []models.SubstituteRequest `json:"created"`
	Skipped    []SlotOutcome              `json:"skipped"`
	Failed     []SlotOutcome              `json:"failed"`
	RolledBack bool                       `json:"rolledBack"`
}

// SubstitutePoints totals approved substitutions of one teacher.
type SubstitutePoints struct {
	TeacherID   string  `json:"teacherId"`
	TeacherName string  `json:"teacherName"`
	Periods     int     `json:"periods"`
	Points      float64 `json:"points"`
}

// SubstituteService coordinates absences and substitute teaching.
type SubstituteService struct {
	repo      substituteRepository
	schedule  scheduleReader
	users     userLookup
	calendar  *Calendar
	validator *validator.Validate
	logger    *zap.Logger
	writes    *keyedMutex
}

// NewSubstituteService constructs the service.
func NewSubstituteService(repo substituteRepository, schedule scheduleReader, users userLookup, calendar *Calendar, validate *validator.Validate, logger *zap.Logger) *SubstituteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calendar == nil {
		calendar = NewCalendar(DefaultTimezone)
	}
	return &SubstituteService{
		repo:      repo,
		schedule:  schedule,
		users:     users,
		calendar:  calendar,
		validator: ensureValidator(validate),
		logger:    logger,
		writes:    newKeyedMutex(),
	}
}

// Affected returns the caller's slots on the date within the session selector.
func (s *SubstituteService) Affected(ctx context.Context, actor Actor, date string, session models.Session) ([]models.ScheduleItem, error) {
	if session != models.SessionAllDay && !session.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session must be Morning, Afternoon or AllDay")
	}
	day, err := s.calendar.SchoolDay(date)
	if err != nil {
		return nil, err
	}
	items, err := s.schedule.List(ctx)
	if err != nil {
		return nil, err
	}
	return slotsOn(items, actor.ID, day, session), nil
}

// RegisterAbsence creates a Pending request for every affected slot. Writes
// run one at a time; with AllOrNothing any failure deletes what was created.
func (s *SubstituteService) RegisterAbsence(ctx context.Context, actor Actor, req RegisterAbsenceRequest) (*AbsenceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid absence payload")
	}
	reason := strings.TrimSpace(req.Reason)
	if !validReason(reason) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown absence reason")
	}
	date := s.calendar.Normalize(req.Date)

	day, err := s.calendar.SchoolDay(date)
	if err != nil {
		return nil, err
	}
	items, err := s.schedule.ListFresh(ctx)
	if err != nil {
		return nil, err
	}
	slots := slotsOn(items, actor.ID, day, req.Session)
	if len(slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no scheduled lessons in the selected session")
	}

	existing, err := s.repo.ListFresh(ctx)
	if err != nil {
		return nil, err
	}

	result := &AbsenceResult{
		Created: []models.SubstituteRequest{},
		Skipped: []SlotOutcome{},
		Failed:  []SlotOutcome{},
	}
	now := s.calendar.Timestamp()
	for _, slot := range slots {
		if s.hasRequest(existing, actor.ID, date, slot.Period, slot.Session) {
			result.Skipped = append(result.Skipped, SlotOutcome{Slot: slot, Error: "request already exists"})
			continue
		}
		record := models.SubstituteRequest{
			ID:                uuid.NewString(),
			AbsentTeacherID:   actor.ID,
			AbsentTeacherName: actor.Name,
			Date:              date,
			Period:            slot.Period,
			Session:           slot.Session,
			ClassName:         slot.ClassName,
			Reason:            reason,
			Status:            models.SubstitutePending,
			PointsAwarded:     models.PointsPerPeriod,
			CreatedAt:         now,
		}
		if err := s.repo.Save(ctx, record); err != nil {
			result.Failed = append(result.Failed, SlotOutcome{Slot: slot, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, record)
	}

	if len(result.Failed) > 0 && req.AllOrNothing {
		s.rollback(ctx, result)
		return result, appErrors.WithDetails(appErrors.ErrUpstream, "absence registration failed and was rolled back", result)
	}

	s.logger.Info("absence registered",
		zap.String("teacher_id", actor.ID),
		zap.String("date", date),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *SubstituteService) rollback(ctx context.Context, result *AbsenceResult) {
	kept := make([]models.SubstituteRequest, 0)
	for _, created := range result.Created {
		if err := s.repo.Delete(ctx, created.ID); err != nil {
			s.logger.Error("failed to roll back substitute request", zap.String("request_id", created.ID), zap.Error(err))
			kept = append(kept, created)
		}
	}
	result.Created = kept
	result.RolledBack = len(kept) == 0
}

func (s *SubstituteService) hasRequest(existing []models.SubstituteRequest, teacherID, date string, period int, session models.Session) bool {
	for _, r := range existing {
		if r.AbsentTeacherID == teacherID && r.Period == period && r.Session == session &&
			s.calendar.Normalize(r.Date) == date {
			return true
		}
	}
	return false
}

// List returns requests matching the filter, newest date first.
func (s *SubstituteService) List(ctx context.Context, filter models.SubstituteFilter) ([]models.SubstituteRequest, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.SubstituteRequest, 0, len(all))
	for _, r := range all {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.TeacherID != "" && r.AbsentTeacherID != filter.TeacherID && r.SubstituteTeacherID != filter.TeacherID {
			continue
		}
		if !s.calendar.InRange(r.Date, filter.From, filter.To) {
			continue
		}
		out = append(out, r)
	}
	sortRequests(out, true)
	return out, nil
}

// Market lists open requests of other teachers, soonest first.
func (s *SubstituteService) Market(ctx context.Context, actor Actor) ([]models.SubstituteRequest, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.SubstituteRequest, 0)
	for _, r := range all {
		if r.Open() && r.AbsentTeacherID != actor.ID && r.Status != models.SubstituteRejected {
			out = append(out, r)
		}
	}
	sortRequests(out, false)
	return out, nil
}

// MyAbsences lists the caller's own requests, newest first.
func (s *SubstituteService) MyAbsences(ctx context.Context, actor Actor) ([]models.SubstituteRequest, error) {
	return s.mine(ctx, func(r models.SubstituteRequest) bool { return r.AbsentTeacherID == actor.ID })
}

// MySubstitutions lists requests the caller accepted, newest first.
func (s *SubstituteService) MySubstitutions(ctx context.Context, actor Actor) ([]models.SubstituteRequest, error) {
	return s.mine(ctx, func(r models.SubstituteRequest) bool { return r.SubstituteTeacherID == actor.ID })
}

func (s *SubstituteService) mine(ctx context.Context, keep func(models.SubstituteRequest) bool) ([]models.SubstituteRequest, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.SubstituteRequest, 0)
	for _, r := range all {
		if keep(r) {
			out = append(out, r)
		}
	}
	sortRequests(out, true)
	return out, nil
}

// Accept assigns the caller as substitute. Accepts of the same request are
// serialized and re-checked against fresh store data.
func (s *SubstituteService) Accept(ctx context.Context, actor Actor, id string) (*models.SubstituteRequest, error) {
	unlock := s.writes.Lock(id)
	defer unlock()

	all, err := s.repo.ListFresh(ctx)
	if err != nil {
		return nil, err
	}
	var target *models.SubstituteRequest
	for i := range all {
		if all[i].ID == id {
			target = &all[i]
			break
		}
	}
	if target == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "substitute request not found")
	}
	if target.AbsentTeacherID == actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot substitute for your own absence")
	}
	if !target.Open() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request already has a substitute")
	}
	if target.Status == models.SubstituteRejected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request was rejected")
	}

	substitute, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !substitute.Teaches() || !substitute.IsApproved {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only approved teachers can substitute")
	}

	date := s.calendar.Normalize(target.Date)
	day, err := s.calendar.SchoolDay(date)
	if err != nil {
		return nil, err
	}
	items, err := s.schedule.ListFresh(ctx)
	if err != nil {
		return nil, err
	}
	if busyAt(items, actor.ID, day, target.Period, target.Session) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("you teach period %d at that time", target.Period))
	}
	for _, r := range all {
		if r.ID != target.ID && r.SubstituteTeacherID == actor.ID && r.Period == target.Period &&
			r.Session == target.Session && s.calendar.Normalize(r.Date) == date {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you already cover another class at that time")
		}
	}

	target.Date = date
	target.SubstituteTeacherID = actor.ID
	target.SubstituteTeacherName = substitute.Name
	target.Status = models.SubstituteApproved
	if target.PointsAwarded == 0 {
		target.PointsAwarded = models.PointsPerPeriod
	}
	if err := s.repo.Save(ctx, *target); err != nil {
		return nil, err
	}
	s.logger.Info("substitution accepted", zap.String("request_id", id), zap.String("substitute_id", actor.ID))
	return target, nil
}

// Cancel withdraws an absence request nobody has accepted yet.
func (s *SubstituteService) Cancel(ctx context.Context, actor Actor, id string) error {
	unlock := s.writes.Lock(id)
	defer unlock()

	target, err := s.repo.FindFresh(ctx, id)
	if err != nil {
		return err
	}
	if target.AbsentTeacherID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the absent teacher may cancel")
	}
	if !target.Open() {
		return appErrors.Clone(appErrors.ErrConflict, "a substitute already accepted this request")
	}
	return s.repo.Delete(ctx, id)
}

// Review lets TCM/TP set the status, flag and note of a request.
func (s *SubstituteService) Review(ctx context.Context, actor Actor, id string, req ReviewSubstituteRequest) (*models.SubstituteRequest, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid review payload")
	}
	unlock := s.writes.Lock(id)
	defer unlock()

	target, err := s.repo.FindFresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
		}
		target.Status = *req.Status
	}
	if req.IsFlagged != nil {
		target.IsFlagged = *req.IsFlagged
	}
	if req.AdminNote != nil {
		target.AdminNote = strings.TrimSpace(*req.AdminNote)
	}
	target.Date = s.calendar.Normalize(target.Date)
	if err := s.repo.Save(ctx, *target); err != nil {
		return nil, err
	}
	s.logger.Info("substitute request reviewed", zap.String("request_id", id), zap.String("actor_id", actor.ID))
	return target, nil
}

// Points totals approved substitutions per teacher, highest first.
func (s *SubstituteService) Points(ctx context.Context, from, to string) ([]SubstitutePoints, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	totals := map[string]*SubstitutePoints{}
	for _, r := range all {
		if r.Status != models.SubstituteApproved || r.SubstituteTeacherID == "" {
			continue
		}
		if !s.calendar.InRange(r.Date, from, to) {
			continue
		}
		entry, ok := totals[r.SubstituteTeacherID]
		if !ok {
			entry = &SubstitutePoints{TeacherID: r.SubstituteTeacherID, TeacherName: r.SubstituteTeacherName}
			totals[r.SubstituteTeacherID] = entry
		}
		entry.Periods++
		entry.Points += r.PointsAwarded
	}
	out := make([]SubstitutePoints, 0, len(totals))
	for _, entry := range totals {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].TeacherName < out[j].TeacherName
	})
	return out, nil
}

func (s *SubstituteService) load(ctx context.Context) ([]models.SubstituteRequest, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		all[i].Date = s.calendar.Normalize(all[i].Date)
	}
	return all, nil
}

func sortRequests(reqs []models.SubstituteRequest, newestFirst bool) {
	sort.SliceStable(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		if a.Date != b.Date {
			if newestFirst {
				return a.Date > b.Date
			}
			return a.Date < b.Date
		}
		if a.Session.Order() != b.Session.Order() {
			return a.Session.Order() < b.Session.Order()
		}
		return a.Period < b.Period
	})
}

func validReason(reason string) bool {
	for _, r := range models.AbsenceReasons {
		if r == reason {
			return true
		}
	}
	return false
}
