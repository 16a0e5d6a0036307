package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/export"
	"github.com/noah-isme/dept-portal-api/pkg/textutil"
)

type scoreRepository interface {
	List(ctx context.Context) ([]models.TeacherScoreRow, error)
	ListFresh(ctx context.Context) ([]models.TeacherScoreRow, error)
	Save(ctx context.Context, row models.TeacherScoreRow) error
}

type scoreExporter interface {
	Publish(dir, title string, exporter export.Exporter, data export.Dataset) (*ExportResult, error)
}

// ScoreValues maps point keys to numbers or numeric strings.
type ScoreValues map[string]json.RawMessage

// ScoreService maintains the department merit sheet.
type ScoreService struct {
	repo     scoreRepository
	users    userLookup
	exports  scoreExporter
	calendar *Calendar
	logger   *zap.Logger
	rows     *keyedMutex
}

// NewScoreService constructs the service.
func NewScoreService(repo scoreRepository, users userLookup, exports scoreExporter, calendar *Calendar, logger *zap.Logger) *ScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calendar == nil {
		calendar = NewCalendar(DefaultTimezone)
	}
	return &ScoreService{repo: repo, users: users, exports: exports, calendar: calendar, logger: logger, rows: newKeyedMutex()}
}

func normalizePeriod(period string) (string, error) {
	if period == "" {
		return models.DefaultScorePeriod, nil
	}
	if !models.ValidScorePeriod(period) {
		return "", appErrors.Clone(appErrors.ErrValidation, "period must be HKI, HKII or Cả năm")
	}
	return period, nil
}

// Upsert merges values into the teacher's row for the period.
func (s *ScoreService) Upsert(ctx context.Context, actor Actor, teacherID, period string, values ScoreValues) (*models.TeacherScoreRow, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return nil, err
	}
	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	rowID := models.ScoreRowID(teacherID, period)
	unlock := s.rows.Lock(rowID)
	defer unlock()

	rows, err := s.repo.ListFresh(ctx)
	if err != nil {
		return nil, err
	}
	row := models.TeacherScoreRow{ID: rowID, TeacherID: teacherID, Period: period}
	for _, existing := range rows {
		if existing.TeacherID == teacherID && existing.Period == period {
			row = existing
			break
		}
	}

	for key, raw := range values {
		field := row.Field(key)
		if field == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown score field %q", key))
		}
		v := models.Float(raw)
		if v < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score field %q cannot be negative", key))
		}
		*field = v
	}
	row.TeacherName = teacher.Name
	row.LastUpdated = s.calendar.Timestamp()

	if err := s.repo.Save(ctx, row); err != nil {
		return nil, err
	}
	s.logger.Info("score row saved", zap.String("row_id", row.ID), zap.String("actor_id", actor.ID))
	return &row, nil
}

// Table computes the ranked merit table for a period. Every approved member
// except BGH appears, with zeros when no row was entered.
func (s *ScoreService) Table(ctx context.Context, period string) ([]models.ScoreTableRow, error) {
	period, err := normalizePeriod(period)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	byTeacher := make(map[string]models.TeacherScoreRow, len(rows))
	for _, row := range rows {
		if row.Period == period {
			byTeacher[row.TeacherID] = row
		}
	}

	table := make([]models.ScoreTableRow, 0, len(users))
	for _, u := range users {
		if u.Role == models.RoleBGH || !u.IsApproved {
			continue
		}
		row, ok := byTeacher[u.ID]
		if !ok {
			row = models.TeacherScoreRow{ID: models.ScoreRowID(u.ID, period), TeacherID: u.ID, Period: period}
		}
		row.TeacherName = u.Name
		total := row.GrandTotal()
		table = append(table, models.ScoreTableRow{
			TeacherID:     u.ID,
			TeacherName:   u.Name,
			Role:          u.Role,
			Scores:        row,
			TotalA:        row.GroupTotal(models.ScoreGroups[0]),
			TotalHSSS:     row.GroupTotal(models.ScoreGroups[1]),
			TotalNgayCong: row.GroupTotal(models.ScoreGroups[2]),
			TotalCTCM:     row.GroupTotal(models.ScoreGroups[3]),
			GrandTotal:    total,
			Title:         models.ScoreTitle(total),
		})
	}

	sort.SliceStable(table, func(i, j int) bool {
		if table[i].GrandTotal != table[j].GrandTotal {
			return table[i].GrandTotal > table[j].GrandTotal
		}
		return textutil.Fold(table[i].TeacherName) < textutil.Fold(table[j].TeacherName)
	})
	for i := range table {
		if i > 0 && table[i].GrandTotal == table[i-1].GrandTotal {
			table[i].Rank = table[i-1].Rank
			continue
		}
		table[i].Rank = i + 1
	}
	return table, nil
}

// Export renders the period's table as xlsx or csv behind a signed link.
func (s *ScoreService) Export(ctx context.Context, period, format string) (*ExportResult, error) {
	if s.exports == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "exports are not configured")
	}
	period, err := normalizePeriod(period)
	if err != nil {
		return nil, err
	}
	exporter, err := exporterFor(format, "Thi đua "+period)
	if err != nil {
		return nil, err
	}
	table, err := s.Table(ctx, period)
	if err != nil {
		return nil, err
	}
	title := "Bảng thi đua " + period
	return s.exports.Publish("scores", title, exporter, ScoreDataset(title, table))
}

// ScoreDataset lays the table out in sheet column order.
func ScoreDataset(title string, table []models.ScoreTableRow) export.Dataset {
	headers := []string{"Hạng", "Họ và tên", "Chức vụ"}
	keys := models.ScoreKeys()
	headers = append(headers, keys...)
	headers = append(headers, "Tổng A", "Tổng HSSS", "Tổng ngày công", "Tổng CTCM", "Tổng điểm", "Danh hiệu")

	rows := make([]map[string]string, 0, len(table))
	for _, line := range table {
		row := map[string]string{
			"Hạng":           strconv.Itoa(line.Rank),
			"Họ và tên":      line.TeacherName,
			"Chức vụ":        line.Role.Label(),
			"Tổng A":         formatPoints(line.TotalA),
			"Tổng HSSS":      formatPoints(line.TotalHSSS),
			"Tổng ngày công": formatPoints(line.TotalNgayCong),
			"Tổng CTCM":      formatPoints(line.TotalCTCM),
			"Tổng điểm":      formatPoints(line.GrandTotal),
			"Danh hiệu":      line.Title,
		}
		for _, key := range keys {
			row[key] = formatPoints(line.Scores.Value(key))
		}
		rows = append(rows, row)
	}
	return export.Dataset{Title: title, Headers: headers, Rows: rows}
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
