package models

import (
	"encoding/json"
	"fmt"
)

// Score periods.
const (
	ScorePeriodHKI     = "HKI"
	ScorePeriodHKII    = "HKII"
	ScorePeriodYear    = "Cả năm"
	DefaultScorePeriod = ScorePeriodHKI
)

// ScorePeriods lists the periods a score sheet can cover.
var ScorePeriods = []string{ScorePeriodHKI, ScorePeriodHKII, ScorePeriodYear}

// ValidScorePeriod reports whether p is a known period.
func ValidScorePeriod(p string) bool {
	for _, v := range ScorePeriods {
		if v == p {
			return true
		}
	}
	return false
}

// ScoreGroup is a subtotal column group of the merit sheet.
type ScoreGroup struct {
	Name  string   `json:"name"`
	Label string   `json:"label"`
	Keys  []string `json:"keys"`
}

// ScoreGroups in sheet order. The standalone fields come last.
var ScoreGroups = []ScoreGroup{
	{Name: "A", Label: "Tư tưởng, đạo đức", Keys: []string{"tt", "dn", "sh", "nq", "qt"}},
	{Name: "HSSS", Label: "Hồ sơ sổ sách", Keys: []string{"ga", "sd", "dg", "lbg", "tb", "dt_hsss"}},
	{Name: "NgayCong", Label: "Ngày công", Keys: []string{"ngc", "bc", "dt_ngaycong"}},
	{Name: "CTCM", Label: "Công tác chuyên môn", Keys: []string{"tg", "thct", "clbm", "dt_ctcm"}},
}

// StandaloneScoreKeys are added to the grand total on their own.
var StandaloneScoreKeys = []string{"chuNhiem", "kiemNhiem", "congTacKhac"}

// ScoreKeys returns every point field in sheet order.
func ScoreKeys() []string {
	keys := make([]string, 0, 21)
	for _, g := range ScoreGroups {
		keys = append(keys, g.Keys...)
	}
	return append(keys, StandaloneScoreKeys...)
}

// Rank titles.
const (
	TitleExcellent = "Xuất sắc"
	TitleGood      = "Hoàn thành tốt"
	TitleDone      = "Hoàn thành"
)

// ScoreTitle maps a grand total to its rank title.
func ScoreTitle(total float64) string {
	switch {
	case total >= 110:
		return TitleExcellent
	case total >= 100:
		return TitleGood
	default:
		return TitleDone
	}
}

// TeacherScoreRow holds a teacher's merit points for one period.
type TeacherScoreRow struct {
	ID          string `json:"id"`
	TeacherID   string `json:"teacherId"`
	TeacherName string `json:"teacherName,omitempty"`
	Period      string `json:"period"`
	LastUpdated string `json:"lastUpdated,omitempty"`

	TT          float64 `json:"tt"`
	DN          float64 `json:"dn"`
	SH          float64 `json:"sh"`
	NQ          float64 `json:"nq"`
	QT          float64 `json:"qt"`
	GA          float64 `json:"ga"`
	SD          float64 `json:"sd"`
	DG          float64 `json:"dg"`
	LBG         float64 `json:"lbg"`
	TB          float64 `json:"tb"`
	DTHSSS      float64 `json:"dt_hsss"`
	NGC         float64 `json:"ngc"`
	BC          float64 `json:"bc"`
	DTNgayCong  float64 `json:"dt_ngaycong"`
	TG          float64 `json:"tg"`
	THCT        float64 `json:"thct"`
	CLBM        float64 `json:"clbm"`
	DTCTCM      float64 `json:"dt_ctcm"`
	ChuNhiem    float64 `json:"chuNhiem"`
	KiemNhiem   float64 `json:"kiemNhiem"`
	CongTacKhac float64 `json:"congTacKhac"`
}

// ScoreRowID is the record id of a teacher's row for a period.
func ScoreRowID(teacherID, period string) string {
	return fmt.Sprintf("%s_%s", teacherID, period)
}

// Field returns a pointer to the point field named key, or nil.
func (r *TeacherScoreRow) Field(key string) *float64 {
	switch key {
	case "tt":
		return &r.TT
	case "dn":
		return &r.DN
	case "sh":
		return &r.SH
	case "nq":
		return &r.NQ
	case "qt":
		return &r.QT
	case "ga":
		return &r.GA
	case "sd":
		return &r.SD
	case "dg":
		return &r.DG
	case "lbg":
		return &r.LBG
	case "tb":
		return &r.TB
	case "dt_hsss":
		return &r.DTHSSS
	case "ngc":
		return &r.NGC
	case "bc":
		return &r.BC
	case "dt_ngaycong":
		return &r.DTNgayCong
	case "tg":
		return &r.TG
	case "thct":
		return &r.THCT
	case "clbm":
		return &r.CLBM
	case "dt_ctcm":
		return &r.DTCTCM
	case "chuNhiem":
		return &r.ChuNhiem
	case "kiemNhiem":
		return &r.KiemNhiem
	case "congTacKhac":
		return &r.CongTacKhac
	}
	return nil
}

// Value reads a point field, 0 for unknown keys.
func (r TeacherScoreRow) Value(key string) float64 {
	if p := r.Field(key); p != nil {
		return *p
	}
	return 0
}

// GroupTotal sums one subtotal group.
func (r TeacherScoreRow) GroupTotal(g ScoreGroup) float64 {
	var sum float64
	for _, key := range g.Keys {
		sum += r.Value(key)
	}
	return sum
}

// GrandTotal is the four subtotals plus the standalone fields.
func (r TeacherScoreRow) GrandTotal() float64 {
	var sum float64
	for _, g := range ScoreGroups {
		sum += r.GroupTotal(g)
	}
	for _, key := range StandaloneScoreKeys {
		sum += r.Value(key)
	}
	return sum
}

func (r *TeacherScoreRow) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*r = TeacherScoreRow{}
	text := func(key string) string {
		var s FlexString
		if raw, ok := fields[key]; ok {
			_ = json.Unmarshal(raw, &s)
		}
		return string(s)
	}
	r.ID = text("id")
	r.TeacherID = text("teacherId")
	r.TeacherName = text("teacherName")
	r.Period = text("period")
	r.LastUpdated = text("lastUpdated")
	for _, key := range ScoreKeys() {
		if raw, ok := fields[key]; ok {
			*r.Field(key) = Float(raw)
		}
	}
	if r.Period == "" {
		r.Period = DefaultScorePeriod
	}
	if r.ID == "" && r.TeacherID != "" {
		r.ID = ScoreRowID(r.TeacherID, r.Period)
	}
	return nil
}

// ScoreTableRow is a computed line of the merit table.
type ScoreTableRow struct {
	Rank          int             `json:"rank"`
	TeacherID     string          `json:"teacherId"`
	TeacherName   string          `json:"teacherName"`
	Role          UserRole        `json:"role"`
	Scores        TeacherScoreRow `json:"scores"`
	TotalA        float64         `json:"totalA"`
	TotalHSSS     float64         `json:"totalHSSS"`
	TotalNgayCong float64         `json:"totalNgayCong"`
	TotalCTCM     float64         `json:"totalCTCM"`
	GrandTotal    float64         `json:"grandTotal"`
	Title         string          `json:"title"`
}
