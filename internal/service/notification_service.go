package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/mail"
)

type notificationRepository interface {
	List(ctx context.Context) ([]models.SystemNotification, error)
	ListFresh(ctx context.Context) ([]models.SystemNotification, error)
	FindByID(ctx context.Context, id string) (*models.SystemNotification, error)
	Save(ctx context.Context, n models.SystemNotification) error
	Delete(ctx context.Context, id string) error
}

type mailObserver interface {
	ObserveMail(err error)
}

// PostNotificationRequest is a new department announcement.
type PostNotificationRequest struct {
	Content           string `json:"content" validate:"required,max=4000"`
	ExecutionTime     string `json:"executionTime"`
	SendEmailReminder bool   `json:"sendEmailReminder"`
	IsImportant       bool   `json:"isImportant"`
}

// ReminderReport summarises one reminder dispatch run.
type ReminderReport struct {
	Due    int `json:"due"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// NotificationService posts announcements and mails their reminders.
type NotificationService struct {
	repo      notificationRepository
	users     userLookup
	mailer    mail.Mailer
	metrics   mailObserver
	calendar  *Calendar
	appName   string
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs the service. A nil mailer disables reminders.
func NewNotificationService(repo notificationRepository, users userLookup, mailer mail.Mailer, metrics mailObserver, calendar *Calendar, appName string, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calendar == nil {
		calendar = NewCalendar(DefaultTimezone)
	}
	return &NotificationService{
		repo:      repo,
		users:     users,
		mailer:    mailer,
		metrics:   metrics,
		calendar:  calendar,
		appName:   appName,
		validator: ensureValidator(validate),
		logger:    logger,
	}
}

// Post publishes an announcement. TCM, TP and BGH may post.
func (s *NotificationService) Post(ctx context.Context, actor Actor, req PostNotificationRequest) (*models.SystemNotification, error) {
	if !actor.IsManagement() && actor.Role != models.RoleBGH {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only TCM, TP or BGH can post notifications")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid notification payload")
	}
	execution := strings.TrimSpace(req.ExecutionTime)
	if execution != "" {
		if _, err := s.parseExecution(execution); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "executionTime must be an ISO date or timestamp")
		}
	}
	if req.SendEmailReminder && execution == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an email reminder needs an execution time")
	}

	n := models.SystemNotification{
		ID:                uuid.NewString(),
		SenderID:          actor.ID,
		SenderName:        actor.Name,
		Role:              actor.Role.Label(),
		Content:           strings.TrimSpace(req.Content),
		Date:              s.calendar.Timestamp(),
		ExecutionTime:     execution,
		SendEmailReminder: req.SendEmailReminder,
		IsImportant:       req.IsImportant,
	}
	if err := s.repo.Save(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Info("notification posted", zap.String("notification_id", n.ID), zap.Bool("reminder", n.SendEmailReminder))
	return &n, nil
}

// List returns important notifications first, then the newest.
func (s *NotificationService) List(ctx context.Context, limit int) ([]models.SystemNotification, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sortNotifications(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Delete removes a notification. The sender or TCM may delete.
func (s *NotificationService) Delete(ctx context.Context, actor Actor, id string) error {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if n.SenderID != actor.ID && actor.Role != models.RoleTCM {
		return appErrors.Clone(appErrors.ErrForbidden, "only the sender or TCM can delete this notification")
	}
	return s.repo.Delete(ctx, id)
}

// DispatchReminders mails every due reminder that has not been sent yet.
func (s *NotificationService) DispatchReminders(ctx context.Context) (*ReminderReport, error) {
	report := &ReminderReport{}
	if s.mailer == nil {
		return report, nil
	}
	items, err := s.repo.ListFresh(ctx)
	if err != nil {
		return nil, err
	}
	now := s.calendar.Now()
	due := make([]models.SystemNotification, 0)
	for _, n := range items {
		if !n.SendEmailReminder || n.ReminderSentAt != "" || n.ExecutionTime == "" {
			continue
		}
		at, err := s.parseExecution(n.ExecutionTime)
		if err != nil {
			s.logger.Warn("notification has unreadable execution time", zap.String("notification_id", n.ID), zap.String("execution_time", n.ExecutionTime))
			continue
		}
		if at.After(now) {
			continue
		}
		due = append(due, n)
	}
	report.Due = len(due)
	if len(due) == 0 {
		return report, nil
	}

	recipients, err := s.recipients(ctx)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		s.logger.Warn("no approved users with email for reminders")
		return report, nil
	}

	for _, n := range due {
		err := s.mailer.Send(ctx, s.reminderMessage(n, recipients))
		if s.metrics != nil {
			s.metrics.ObserveMail(err)
		}
		if err != nil {
			report.Failed++
			s.logger.Error("reminder mail failed", zap.String("notification_id", n.ID), zap.Error(err))
			continue
		}
		n.ReminderSentAt = s.calendar.Timestamp()
		if err := s.repo.Save(ctx, n); err != nil {
			report.Failed++
			s.logger.Error("failed to mark reminder sent", zap.String("notification_id", n.ID), zap.Error(err))
			continue
		}
		report.Sent++
	}
	return report, nil
}

func (s *NotificationService) recipients(ctx context.Context) ([]mail.Recipient, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]mail.Recipient, 0, len(users))
	for _, u := range users {
		email := strings.TrimSpace(u.Email)
		if !u.IsApproved || email == "" || !strings.Contains(email, "@") {
			continue
		}
		out = append(out, mail.Recipient{Name: u.Name, Email: email})
	}
	return out, nil
}

func (s *NotificationService) reminderMessage(n models.SystemNotification, to []mail.Recipient) mail.Message {
	when := n.ExecutionTime
	if at, err := s.parseExecution(n.ExecutionTime); err == nil {
		when = at.Format("15:04 02/01/2006")
	}
	subject := fmt.Sprintf("Nhắc việc: %s", truncate(n.Content, 60))
	if n.IsImportant {
		subject = "[Quan trọng] " + subject
	}
	text := fmt.Sprintf("%s\n\nThời gian: %s\nNgười gửi: %s (%s)", n.Content, when, n.SenderName, n.Role)
	body := fmt.Sprintf("<p>%s</p><p><b>Thời gian:</b> %s<br><b>Người gửi:</b> %s (%s)</p>",
		strings.ReplaceAll(html.EscapeString(n.Content), "\n", "<br>"),
		html.EscapeString(when), html.EscapeString(n.SenderName), html.EscapeString(n.Role))
	if s.appName != "" {
		body += fmt.Sprintf("<p><small>%s</small></p>", html.EscapeString(s.appName))
	}
	return mail.Message{To: to, Subject: subject, Text: text, HTML: body}
}

// parseExecution accepts a date, a local datetime or an RFC3339 timestamp.
func (s *NotificationService) parseExecution(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(s.calendar.Location()), nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, s.calendar.Location()); err == nil {
			return t, nil
		}
	}
	return s.calendar.Parse(value)
}

func sortNotifications(items []models.SystemNotification) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsImportant != items[j].IsImportant {
			return items[i].IsImportant
		}
		return items[i].Date > items[j].Date
	})
}

func truncate(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}
