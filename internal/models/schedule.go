package models

import "encoding/json"

// Schedule bounds.
const (
	MinPeriod = 1
	MaxPeriod = 5
	MinDay    = 2
	MaxDay    = 8
)

// ScheduleItem is one weekly teaching slot. A teacher holds at most one item
// per (dayOfWeek, period, session).
type ScheduleItem struct {
	ID          string  `json:"id"`
	TeacherID   string  `json:"teacherId"`
	TeacherName string  `json:"teacherName,omitempty"`
	DayOfWeek   int     `json:"dayOfWeek"`
	Period      int     `json:"period"`
	Session     Session `json:"session"`
	Subject     string  `json:"subject"`
	ClassName   string  `json:"className"`
	Note        string  `json:"note,omitempty"`
}

func (s *ScheduleItem) UnmarshalJSON(b []byte) error {
	type plain ScheduleItem
	aux := struct {
		*plain
		ID        FlexString `json:"id"`
		TeacherID FlexString `json:"teacherId"`
		DayOfWeek FlexInt    `json:"dayOfWeek"`
		Period    FlexInt    `json:"period"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.ID = string(aux.ID)
	s.TeacherID = string(aux.TeacherID)
	s.DayOfWeek = int(aux.DayOfWeek)
	s.Period = int(aux.Period)
	if !s.Session.Valid() {
		s.Session = SessionForPeriod(s.Period)
	}
	return nil
}

// SameSlot reports whether two items occupy the same day, period and session.
func (s ScheduleItem) SameSlot(day, period int, session Session) bool {
	return s.DayOfWeek == day && s.Period == period && s.Session == session
}

// ScheduleFilter narrows schedule listings. Zero values match everything.
type ScheduleFilter struct {
	TeacherID string
	DayOfWeek int
	Session   Session
}
