package models

import (
	"encoding/json"
	"strings"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleGV  UserRole = "GV"
	RoleNV  UserRole = "NV"
	RoleTP  UserRole = "TP"
	RoleTCM UserRole = "TCM"
	RoleBGH UserRole = "BGH"
)

var roleLabels = map[UserRole]string{
	RoleGV:  "Giáo viên",
	RoleNV:  "Nhân viên",
	RoleTP:  "Tổ phó",
	RoleTCM: "Tổ trưởng chuyên môn",
	RoleBGH: "Ban giám hiệu",
}

// Label returns the Vietnamese display name of the role.
func (r UserRole) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

// IsManagement reports whether the role runs the department (TCM or TP).
func (r UserRole) IsManagement() bool {
	return r == RoleTCM || r == RoleTP
}

// ParseRole accepts a role code or its Vietnamese label.
func ParseRole(s string) (UserRole, bool) {
	s = strings.TrimSpace(s)
	for code, label := range roleLabels {
		if strings.EqualFold(s, string(code)) || strings.EqualFold(s, label) {
			return code, true
		}
	}
	return "", false
}

func (r *UserRole) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*r = ""
		return nil
	}
	if code, ok := ParseRole(s); ok {
		*r = code
		return nil
	}
	*r = UserRole(s)
	return nil
}

// StaffPosition is the office post of an NV user.
type StaffPosition string

const (
	StaffNone      StaffPosition = "Không"
	StaffEquipment StaffPosition = "Nhân viên Thiết bị"
	StaffLibrary   StaffPosition = "Nhân viên Thư viện"
)

// Valid reports whether p is a known position.
func (p StaffPosition) Valid() bool {
	switch p {
	case StaffNone, StaffEquipment, StaffLibrary:
		return true
	}
	return false
}

// OfficeSubject is the subject recorded for staff who do not teach.
const OfficeSubject = "Văn phòng"

// User is a department member. Password holds a bcrypt hash, or a legacy
// plaintext value that is upgraded on the next login.
type User struct {
	ID              string        `json:"id"`
	Username        string        `json:"username"`
	Password        string        `json:"password,omitempty"`
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Role            UserRole      `json:"role"`
	Subject         string        `json:"subject"`
	StaffPosition   StaffPosition `json:"staffPosition,omitempty"`
	IsApproved      bool          `json:"isApproved"`
	AssignedClasses []string      `json:"assignedClasses"`
	GradeLevel      []int         `json:"gradeLevel,omitempty"`
	IsChuNhiem      bool          `json:"isChuNhiem"`
	Duties          []string      `json:"duties"`
}

func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	aux := struct {
		*plain
		ID              FlexString  `json:"id"`
		Username        FlexString  `json:"username"`
		Password        FlexString  `json:"password"`
		IsApproved      FlexBool    `json:"isApproved"`
		AssignedClasses FlexStrings `json:"assignedClasses"`
		GradeLevel      FlexInts    `json:"gradeLevel"`
		IsChuNhiem      FlexBool    `json:"isChuNhiem"`
		Duties          FlexStrings `json:"duties"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	u.ID = string(aux.ID)
	u.Username = string(aux.Username)
	u.Password = string(aux.Password)
	u.IsApproved = bool(aux.IsApproved)
	u.AssignedClasses = nonNil(aux.AssignedClasses)
	u.GradeLevel = aux.GradeLevel
	u.IsChuNhiem = bool(aux.IsChuNhiem)
	u.Duties = nonNil(aux.Duties)
	return nil
}

// Sanitized returns a copy without the password.
func (u User) Sanitized() User {
	u.Password = ""
	u.AssignedClasses = nonNil(u.AssignedClasses)
	u.Duties = nonNil(u.Duties)
	return u
}

// HasClass reports whether the user holds the exact class label.
func (u User) HasClass(label string) bool {
	for _, c := range u.AssignedClasses {
		if c == label {
			return true
		}
	}
	return false
}

// Teaches reports whether the user can hold classes and schedule slots.
func (u User) Teaches() bool {
	return u.Role != RoleNV
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Approved *bool
	Role     UserRole
	Search   string
	Page     int
	PageSize int
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
