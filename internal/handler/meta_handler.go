package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// MetaOptions lists the fixed choices the client renders in forms.
type MetaOptions struct {
	AbsenceReasons     []string               `json:"absenceReasons"`
	Subjects           []string               `json:"subjects"`
	ClassOptions       []string               `json:"classOptions"`
	HomeroomLabel      string                 `json:"homeroomLabel"`
	DocumentCategories []string               `json:"documentCategories"`
	DocumentTypes      []string               `json:"documentTypes"`
	DocumentStatuses   []models.DocStatus     `json:"documentStatuses"`
	CommentTypes       []string               `json:"commentTypes"`
	ScorePeriods       []string               `json:"scorePeriods"`
	ScoreGroups        []models.ScoreGroup    `json:"scoreGroups"`
	AcademicYears      []string               `json:"academicYears"`
	Roles              []RoleOption           `json:"roles"`
	StaffPositions     []models.StaffPosition `json:"staffPositions"`
}

// RoleOption pairs a role code with its label.
type RoleOption struct {
	Code  models.UserRole `json:"code"`
	Label string          `json:"label"`
}

// MetaHandler serves static form options.
type MetaHandler struct {
	options MetaOptions
}

// NewMetaHandler builds the option lists once.
func NewMetaHandler() *MetaHandler {
	roles := []models.UserRole{models.RoleGV, models.RoleNV, models.RoleTP, models.RoleTCM, models.RoleBGH}
	roleOptions := make([]RoleOption, 0, len(roles))
	for _, r := range roles {
		roleOptions = append(roleOptions, RoleOption{Code: r, Label: r.Label()})
	}
	return &MetaHandler{options: MetaOptions{
		AbsenceReasons:     models.AbsenceReasons,
		Subjects:           models.Subjects,
		ClassOptions:       models.ClassOptions(),
		HomeroomLabel:      models.HomeroomLabel,
		DocumentCategories: models.DocumentCategories,
		DocumentTypes:      models.DocumentTypes,
		DocumentStatuses:   []models.DocStatus{models.DocApproved, models.DocPending, models.DocNeedsEdit},
		CommentTypes:       models.CommentTypes,
		ScorePeriods:       models.ScorePeriods,
		ScoreGroups:        models.ScoreGroups,
		AcademicYears:      models.AcademicYears,
		Roles:              roleOptions,
		StaffPositions:     []models.StaffPosition{models.StaffNone, models.StaffEquipment, models.StaffLibrary},
	}}
}

// Options godoc
// @Summary Form options
// @Tags Meta
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meta/options [get]
func (h *MetaHandler) Options(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.options, nil)
}
