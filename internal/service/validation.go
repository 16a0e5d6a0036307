package service

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/dept-portal-api/internal/models"
)

// NewValidator returns a validator with the department's custom tags:
// class_label, school_day and iso_date.
func NewValidator() *validator.Validate {
	v := validator.New()
	registerDomainValidations(v)
	return v
}

func registerDomainValidations(v *validator.Validate) {
	_ = v.RegisterValidation("class_label", func(fl validator.FieldLevel) bool {
		return models.ValidClassLabel(fl.Field().String())
	})
	_ = v.RegisterValidation("school_day", func(fl validator.FieldLevel) bool {
		day := fl.Field().Int()
		return day >= models.MinDay && day <= models.MaxDay
	})
	_ = v.RegisterValidation("iso_date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("session", func(fl validator.FieldLevel) bool {
		return models.Session(fl.Field().String()).Valid()
	})
}

// ensureValidator fills in a validator carrying the custom tags.
func ensureValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		return NewValidator()
	}
	registerDomainValidations(v)
	return v
}
