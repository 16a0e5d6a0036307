package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/storage"
)

func values(pairs map[string]string) ScoreValues {
	out := ScoreValues{}
	for k, v := range pairs {
		out[k] = json.RawMessage(v)
	}
	return out
}

func TestScoreServiceUpsertMerges(t *testing.T) {
	f := newFixture(t)
	f.users(t, teacher("u1", "An"))
	svc := NewScoreService(f.repos.Scores, f.repos.Users, nil, f.calendar, nil)
	tcm := Actor{ID: "tcm", Role: models.RoleTCM}

	_, err := svc.Upsert(f.ctx, actorOf(teacher("u1", "An")), "u1", "", values(map[string]string{"tt": "10"}))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Upsert(f.ctx, tcm, "u1", "", values(map[string]string{"tt": "10", "ga": `"4.5"`}))
	require.NoError(t, err)
	row, err := svc.Upsert(f.ctx, tcm, "u1", "", values(map[string]string{"chuNhiem": "5"}))
	require.NoError(t, err)
	assert.Equal(t, models.ScoreRowID("u1", models.ScorePeriodHKI), row.ID)
	assert.Equal(t, 10.0, row.TT)
	assert.Equal(t, 4.5, row.GA)
	assert.Equal(t, 5.0, row.ChuNhiem)
	assert.Equal(t, 19.5, row.GrandTotal())

	_, err = svc.Upsert(f.ctx, tcm, "u1", "", values(map[string]string{"bonus": "1"}))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Upsert(f.ctx, tcm, "u1", "", values(map[string]string{"tt": "-1"}))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Upsert(f.ctx, tcm, "u1", "HKIII", values(map[string]string{"tt": "1"}))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestScoreServiceTableRanksWithTies(t *testing.T) {
	f := newFixture(t)
	bgh := teacher("b1", "Hiệu trưởng")
	bgh.Role = models.RoleBGH
	pending := teacher("p1", "Chờ duyệt")
	pending.IsApproved = false
	f.users(t, teacher("u1", "An"), teacher("u2", "Bình"), teacher("u3", "Chi"), bgh, pending)
	svc := NewScoreService(f.repos.Scores, f.repos.Users, nil, f.calendar, nil)
	tcm := Actor{ID: "tcm", Role: models.RoleTCM}

	_, err := svc.Upsert(f.ctx, tcm, "u2", models.ScorePeriodHKI, values(map[string]string{"tt": "60", "tg": "52"}))
	require.NoError(t, err)
	_, err = svc.Upsert(f.ctx, tcm, "u3", models.ScorePeriodHKI, values(map[string]string{"tt": "60", "tg": "52"}))
	require.NoError(t, err)
	_, err = svc.Upsert(f.ctx, tcm, "u1", models.ScorePeriodHKII, values(map[string]string{"tt": "100"}))
	require.NoError(t, err)

	table, err := svc.Table(f.ctx, models.ScorePeriodHKI)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, "Bình", table[0].TeacherName)
	assert.Equal(t, 1, table[0].Rank)
	assert.Equal(t, 1, table[1].Rank)
	assert.Equal(t, 3, table[2].Rank)
	assert.Equal(t, models.TitleExcellent, table[0].Title)
	assert.Equal(t, 60.0, table[0].TotalA)
	assert.Equal(t, 52.0, table[0].TotalCTCM)
	assert.Equal(t, 0.0, table[2].GrandTotal)
	assert.Equal(t, models.TitleDone, table[2].Title)
}

func TestScoreServiceExport(t *testing.T) {
	f := newFixture(t)
	f.users(t, teacher("u1", "An"))
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exports := NewExportService(files, storage.NewSignedURLSigner("k", time.Hour), ExportConfig{}, nil)
	svc := NewScoreService(f.repos.Scores, f.repos.Users, exports, f.calendar, nil)

	result, err := svc.Export(f.ctx, "", "csv")
	require.NoError(t, err)
	assert.Equal(t, "bang-thi-dua-hki.csv", result.FileName)

	_, err = svc.Export(f.ctx, "", "doc")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	disabled := NewScoreService(f.repos.Scores, f.repos.Users, nil, f.calendar, nil)
	_, err = disabled.Export(f.ctx, "", "csv")
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
}

func TestScoreDatasetColumns(t *testing.T) {
	row := models.TeacherScoreRow{TT: 10, ChuNhiem: 2.5}
	data := ScoreDataset("T", []models.ScoreTableRow{{Rank: 1, TeacherName: "An", Role: models.RoleGV, Scores: row, GrandTotal: 12.5}})
	assert.Len(t, data.Headers, 3+21+6)
	assert.Equal(t, "10", data.Rows[0]["tt"])
	assert.Equal(t, "2.5", data.Rows[0]["chuNhiem"])
	assert.Equal(t, "12.5", data.Rows[0]["Tổng điểm"])
	assert.Equal(t, "Giáo viên", data.Rows[0]["Chức vụ"])
}
