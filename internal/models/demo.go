package models

import "encoding/json"

// TeachingDemo is a registered demonstration lesson (thao giảng).
type TeachingDemo struct {
	ID                string   `json:"id"`
	Week              int      `json:"week"`
	Date              string   `json:"date"`
	DayOfWeek         int      `json:"dayOfWeek"`
	Period            int      `json:"period"`
	Session           Session  `json:"session"`
	ClassName         string   `json:"className"`
	TeacherID         string   `json:"teacherId"`
	TeacherName       string   `json:"teacherName,omitempty"`
	TCT               int      `json:"tct"`
	LessonName        string   `json:"lessonName"`
	ReporterID        string   `json:"reporterId"`
	Note              string   `json:"note"`
	IsCancelled       bool     `json:"isCancelled"`
	IsLate            bool     `json:"isLate"`
	AvailableTeachers []string `json:"availableTeachers"`
	CreatedAt         string   `json:"createdAt,omitempty"`
}

func (d *TeachingDemo) UnmarshalJSON(b []byte) error {
	type plain TeachingDemo
	aux := struct {
		*plain
		ID                FlexString  `json:"id"`
		TeacherID         FlexString  `json:"teacherId"`
		ReporterID        FlexString  `json:"reporterId"`
		Week              FlexInt     `json:"week"`
		DayOfWeek         FlexInt     `json:"dayOfWeek"`
		Period            FlexInt     `json:"period"`
		TCT               FlexInt     `json:"tct"`
		IsCancelled       FlexBool    `json:"isCancelled"`
		IsLate            FlexBool    `json:"isLate"`
		AvailableTeachers FlexStrings `json:"availableTeachers"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d.ID = string(aux.ID)
	d.TeacherID = string(aux.TeacherID)
	d.ReporterID = string(aux.ReporterID)
	d.Week = int(aux.Week)
	d.DayOfWeek = int(aux.DayOfWeek)
	d.Period = int(aux.Period)
	d.TCT = int(aux.TCT)
	d.IsCancelled = bool(aux.IsCancelled)
	d.IsLate = bool(aux.IsLate)
	d.AvailableTeachers = nonNil(aux.AvailableTeachers)
	if !d.Session.Valid() {
		d.Session = SessionForPeriod(d.Period)
	}
	return nil
}

// DemoView is a demo with the availability recomputed at read time.
type DemoView struct {
	TeachingDemo
	CurrentAvailable []string `json:"currentAvailable"`
}

// DemoFilter narrows demo listings.
type DemoFilter struct {
	Week      int
	TeacherID string
	From      string
	To        string
}

// DemoStats summarises demo registrations.
type DemoStats struct {
	Total      int               `json:"total"`
	Cancelled  int               `json:"cancelled"`
	Late       int               `json:"late"`
	PerTeacher []DemoTeacherStat `json:"perTeacher"`
}

// DemoTeacherStat counts demos of one teacher.
type DemoTeacherStat struct {
	TeacherID   string `json:"teacherId"`
	TeacherName string `json:"teacherName"`
	Count       int    `json:"count"`
	Cancelled   int    `json:"cancelled"`
	Late        int    `json:"late"`
}
