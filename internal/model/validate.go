package model

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRecord is returned when a record fails validation before storage.
var ErrInvalidRecord = errors.New("invalid feedback record")

var (
	classCodeRegex = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}$`)
	durationRegex  = regexp.MustCompile(`^\d+:\d+(\.\d+)?$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report JSON names in errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("classcode", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == UnknownClassCode || classCodeRegex.MatchString(s)
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		return durationRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("rubric_category", func(fl validator.FieldLevel) bool {
		return IsRubricCategory(RubricCategory(fl.Field().String()))
	})
	_ = v.RegisterValidation("score", func(fl validator.FieldLevel) bool {
		return Score(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks the record against the storage constraints.
func (r FeedbackRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w %s: %w", ErrInvalidRecord, r.UniqueID, err)
	}
	return nil
}
