package models

import "encoding/json"

// SubstituteStatus tracks a substitute request.
type SubstituteStatus string

const (
	SubstitutePending  SubstituteStatus = "Pending"
	SubstituteApproved SubstituteStatus = "Approved"
	SubstituteRejected SubstituteStatus = "Rejected"
)

// Valid reports whether s is a known status.
func (s SubstituteStatus) Valid() bool {
	switch s {
	case SubstitutePending, SubstituteApproved, SubstituteRejected:
		return true
	}
	return false
}

// PointsPerPeriod is awarded for each period taught as a substitute.
const PointsPerPeriod = 0.25

// AbsenceReasons lists the reasons offered when registering an absence.
var AbsenceReasons = []string{
	"Nghỉ công tác",
	"Việc gia đình (Có phép)",
	"Nghỉ ốm (Có giấy tờ)",
	"Đi học chuyên môn",
	"Việc riêng đột xuất",
	"Thai sản/Dưỡng nhi",
	"Tham gia phong trào",
}

// SubstituteRequest is one period that needs covering.
type SubstituteRequest struct {
	ID                    string           `json:"id"`
	AbsentTeacherID       string           `json:"absentTeacherId"`
	AbsentTeacherName     string           `json:"absentTeacherName"`
	SubstituteTeacherID   string           `json:"substituteTeacherId"`
	SubstituteTeacherName string           `json:"substituteTeacherName"`
	Date                  string           `json:"date"`
	Period                int              `json:"period"`
	Session               Session          `json:"session"`
	ClassName             string           `json:"className"`
	Reason                string           `json:"reason"`
	Status                SubstituteStatus `json:"status"`
	PointsAwarded         float64          `json:"pointsAwarded"`
	IsFlagged             bool             `json:"isFlagged"`
	AdminNote             string           `json:"adminNote"`
	CreatedAt             string           `json:"createdAt,omitempty"`
}

func (r *SubstituteRequest) UnmarshalJSON(b []byte) error {
	type plain SubstituteRequest
	aux := struct {
		*plain
		ID                  FlexString `json:"id"`
		AbsentTeacherID     FlexString `json:"absentTeacherId"`
		SubstituteTeacherID FlexString `json:"substituteTeacherId"`
		Period              FlexInt    `json:"period"`
		PointsAwarded       FlexFloat  `json:"pointsAwarded"`
		IsFlagged           FlexBool   `json:"isFlagged"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.ID = string(aux.ID)
	r.AbsentTeacherID = string(aux.AbsentTeacherID)
	r.SubstituteTeacherID = string(aux.SubstituteTeacherID)
	r.Period = int(aux.Period)
	r.PointsAwarded = float64(aux.PointsAwarded)
	r.IsFlagged = bool(aux.IsFlagged)
	if !r.Session.Valid() {
		r.Session = SessionForPeriod(r.Period)
	}
	if r.Status == "" {
		r.Status = SubstitutePending
	}
	return nil
}

// Open reports whether nobody has accepted the request yet.
func (r SubstituteRequest) Open() bool {
	return r.SubstituteTeacherID == ""
}

// SubstituteFilter narrows request listings.
type SubstituteFilter struct {
	Status    SubstituteStatus
	TeacherID string
	From      string
	To        string
}
