package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/export"
	"github.com/noah-isme/dept-portal-api/pkg/textutil"
)

type lessonPlanRepository interface {
	List(ctx context.Context) ([]models.LessonPlanReview, error)
	ListFresh(ctx context.Context) ([]models.LessonPlanReview, error)
	FindFresh(ctx context.Context, id string) (*models.LessonPlanReview, error)
	Save(ctx context.Context, review models.LessonPlanReview) error
}

// AddCommentRequest attaches a review remark to a teacher's weekly plan.
type AddCommentRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
	Week      int    `json:"week" validate:"required,min=1,max=52"`
	PlanName  string `json:"planName" validate:"max=300"`
	Content   string `json:"content" validate:"required,max=2000"`
	Type      string `json:"type" validate:"required"`
}

// LessonPlanService stores review comments on lesson plans.
type LessonPlanService struct {
	repo      lessonPlanRepository
	users     userLookup
	exports   scoreExporter
	calendar  *Calendar
	fontFile  string
	validator *validator.Validate
	logger    *zap.Logger
	reviews   *keyedMutex
}

// NewLessonPlanService constructs the service. fontFile is the TTF used for
// PDF exports and may be empty.
func NewLessonPlanService(repo lessonPlanRepository, users userLookup, exports scoreExporter, calendar *Calendar, fontFile string, validate *validator.Validate, logger *zap.Logger) *LessonPlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calendar == nil {
		calendar = NewCalendar(DefaultTimezone)
	}
	return &LessonPlanService{
		repo:      repo,
		users:     users,
		exports:   exports,
		calendar:  calendar,
		fontFile:  fontFile,
		validator: ensureValidator(validate),
		logger:    logger,
		reviews:   newKeyedMutex(),
	}
}

// List returns reviews ordered by week then teacher name.
func (s *LessonPlanService) List(ctx context.Context, filter models.LessonPlanFilter) ([]models.LessonPlanReview, error) {
	reviews, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.LessonPlanReview, 0, len(reviews))
	for _, r := range reviews {
		if filter.TeacherID != "" && r.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Week != 0 && r.Week != filter.Week {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Week != out[j].Week {
			return out[i].Week < out[j].Week
		}
		return textutil.Fold(out[i].TeacherName) < textutil.Fold(out[j].TeacherName)
	})
	return out, nil
}

// AddComment appends to the (teacher, week) review, creating it when absent.
func (s *LessonPlanService) AddComment(ctx context.Context, actor Actor, req AddCommentRequest) (*models.LessonPlanReview, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid comment payload")
	}
	if !contains(models.CommentTypes, req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown comment type")
	}
	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		return nil, err
	}

	unlock := s.reviews.Lock(reviewKey(req.TeacherID, req.Week))
	defer unlock()

	reviews, err := s.repo.ListFresh(ctx)
	if err != nil {
		return nil, err
	}
	var review *models.LessonPlanReview
	for i := range reviews {
		if reviews[i].TeacherID == req.TeacherID && reviews[i].Week == req.Week {
			review = &reviews[i]
			break
		}
	}
	if review == nil {
		review = &models.LessonPlanReview{
			ID:        uuid.NewString(),
			TeacherID: teacher.ID,
			Week:      req.Week,
			Comments:  []models.LessonPlanComment{},
		}
	}

	now := s.calendar.Timestamp()
	review.TeacherName = teacher.Name
	if name := strings.TrimSpace(req.PlanName); name != "" {
		review.PlanName = name
	}
	review.Comments = append(review.Comments, models.LessonPlanComment{
		ID:           uuid.NewString(),
		ReviewerID:   actor.ID,
		ReviewerName: actor.Name,
		Content:      strings.TrimSpace(req.Content),
		Type:         req.Type,
		Timestamp:    now,
	})
	review.LastUpdated = now

	if err := s.repo.Save(ctx, *review); err != nil {
		return nil, err
	}
	return review, nil
}

func reviewKey(teacherID string, week int) string {
	return teacherID + "|" + strconv.Itoa(week)
}

// DeleteComment removes a comment. Its author or TCM may delete.
func (s *LessonPlanService) DeleteComment(ctx context.Context, actor Actor, reviewID, commentID string) (*models.LessonPlanReview, error) {
	current, err := s.repo.FindFresh(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	unlock := s.reviews.Lock(reviewKey(current.TeacherID, current.Week))
	defer unlock()

	review, err := s.repo.FindFresh(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, c := range review.Comments {
		if c.ID == commentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "comment not found")
	}
	author := review.Comments[idx].ReviewerID
	if actor.Role != models.RoleTCM && (author == "" || author != actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author or TCM can delete this comment")
	}
	review.Comments = append(review.Comments[:idx], review.Comments[idx+1:]...)
	review.LastUpdated = s.calendar.Timestamp()
	if err := s.repo.Save(ctx, *review); err != nil {
		return nil, err
	}
	return review, nil
}

// Export renders the filtered reviews as a PDF behind a signed link.
func (s *LessonPlanService) Export(ctx context.Context, filter models.LessonPlanFilter) (*ExportResult, error) {
	if s.exports == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "exports are not configured")
	}
	reviews, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	title := "Nhận xét giáo án"
	if filter.Week != 0 {
		title = fmt.Sprintf("%s tuần %d", title, filter.Week)
	}
	if filter.TeacherID != "" && len(reviews) > 0 {
		title = fmt.Sprintf("%s - %s", title, reviews[0].TeacherName)
	}
	exporter := export.NewPDFExporter(s.fontFile).
		WithColumnWidth("Tuần", 15).
		WithColumnWidth("Giáo viên", 45).
		WithColumnWidth("Bài dạy", 60)
	return s.exports.Publish("lesson-plans", title, exporter, LessonPlanDataset(title, reviews))
}

// LessonPlanDataset flattens reviews into one row per review.
func LessonPlanDataset(title string, reviews []models.LessonPlanReview) export.Dataset {
	headers := []string{"Tuần", "Giáo viên", "Bài dạy", "Nhận xét"}
	rows := make([]map[string]string, 0, len(reviews))
	for _, r := range reviews {
		lines := make([]string, 0, len(r.Comments))
		for _, c := range r.Comments {
			lines = append(lines, fmt.Sprintf("%s (%s): [%s] %s", c.ReviewerName, c.Timestamp, c.Type, c.Content))
		}
		rows = append(rows, map[string]string{
			"Tuần":      strconv.Itoa(r.Week),
			"Giáo viên": r.TeacherName,
			"Bài dạy":   r.PlanName,
			"Nhận xét":  strings.Join(lines, "\n"),
		})
	}
	return export.Dataset{Title: title, Headers: headers, Rows: rows}
}
