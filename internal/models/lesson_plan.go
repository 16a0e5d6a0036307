package models

import "encoding/json"

// CommentTypes are the verdicts a reviewer can attach to a lesson plan.
var CommentTypes = []string{"Đúng quy định", "Nộp trễ", "Thiếu HSKT", "Khác"}

// LessonPlanComment is a single review remark.
type LessonPlanComment struct {
	ID           string `json:"id"`
	ReviewerID   string `json:"reviewerId,omitempty"`
	ReviewerName string `json:"reviewerName"`
	Content      string `json:"content"`
	Type         string `json:"type"`
	Timestamp    string `json:"timestamp"`
}

// LessonPlanReview gathers the comments on one teacher's plan for a week.
type LessonPlanReview struct {
	ID          string              `json:"id"`
	TeacherID   string              `json:"teacherId"`
	TeacherName string              `json:"teacherName,omitempty"`
	Week        int                 `json:"week"`
	PlanName    string              `json:"planName"`
	Comments    []LessonPlanComment `json:"comments"`
	LastUpdated string              `json:"lastUpdated"`
}

func (r *LessonPlanReview) UnmarshalJSON(b []byte) error {
	type plain LessonPlanReview
	aux := struct {
		*plain
		ID        FlexString                  `json:"id"`
		TeacherID FlexString                  `json:"teacherId"`
		Week      FlexInt                     `json:"week"`
		Comments  FlexList[LessonPlanComment] `json:"comments"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.ID = string(aux.ID)
	r.TeacherID = string(aux.TeacherID)
	r.Week = int(aux.Week)
	r.Comments = aux.Comments
	if r.Comments == nil {
		r.Comments = []LessonPlanComment{}
	}
	return nil
}

// LessonPlanFilter narrows review listings.
type LessonPlanFilter struct {
	TeacherID string
	Week      int
}
