package models

import (
	"fmt"
	"strconv"
	"strings"
)

// HomeroomLabel is the pseudo-class a homeroom teacher schedules.
const HomeroomLabel = "HĐTN Chủ_nhiệm"

// Subjects taught by the department.
var Subjects = []string{"Toán", "Tin học", "Công nghệ", "Khác"}

// Grade and class bounds of the lower secondary school.
const (
	MinGrade = 6
	MaxGrade = 9
	MinClass = 1
	MaxClass = 6
)

// ClassLabel is a parsed "Subject G/C" assignment such as "Tin học 7/2".
type ClassLabel struct {
	Subject string
	Grade   int
	Class   int
}

func (c ClassLabel) String() string {
	return fmt.Sprintf("%s %d/%d", c.Subject, c.Grade, c.Class)
}

// ParseClassLabel splits a label on its last space. The subject may contain
// spaces; the tail must be G/C within bounds.
func ParseClassLabel(label string) (ClassLabel, error) {
	label = strings.TrimSpace(label)
	idx := strings.LastIndex(label, " ")
	if idx <= 0 {
		return ClassLabel{}, fmt.Errorf("invalid class label %q", label)
	}
	subject := strings.TrimSpace(label[:idx])
	gradePart, classPart, ok := strings.Cut(label[idx+1:], "/")
	if !ok {
		return ClassLabel{}, fmt.Errorf("invalid class label %q", label)
	}
	grade, err := strconv.Atoi(gradePart)
	if err != nil || grade < MinGrade || grade > MaxGrade {
		return ClassLabel{}, fmt.Errorf("invalid grade in %q", label)
	}
	class, err := strconv.Atoi(classPart)
	if err != nil || class < MinClass || class > MaxClass {
		return ClassLabel{}, fmt.Errorf("invalid class in %q", label)
	}
	return ClassLabel{Subject: subject, Grade: grade, Class: class}, nil
}

// ValidClassLabel accepts a "Subject G/C" label or the homeroom label.
func ValidClassLabel(label string) bool {
	if label == HomeroomLabel {
		return true
	}
	_, err := ParseClassLabel(label)
	return err == nil
}

// SubjectOf returns the subject of a class label, or "" when unparsable.
func SubjectOf(label string) string {
	parsed, err := ParseClassLabel(label)
	if err != nil {
		return ""
	}
	return parsed.Subject
}

// ClassOptions enumerates the labels a member may hold in assignedClasses.
// The homeroom label is granted through isChuNhiem instead.
func ClassOptions() []string {
	out := make([]string, 0, len(Subjects)*(MaxGrade-MinGrade+1)*(MaxClass-MinClass+1))
	for _, subject := range Subjects {
		for grade := MinGrade; grade <= MaxGrade; grade++ {
			for class := MinClass; class <= MaxClass; class++ {
				out = append(out, ClassLabel{Subject: subject, Grade: grade, Class: class}.String())
			}
		}
	}
	return out
}
