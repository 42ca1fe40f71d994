// Package validation gates exam payloads before a submission leaves draft.
// It checks payload content only; workflow state belongs to the engine.
package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/asaskevich/govalidator"

	"examflow/internal/submission/models"
	dErrors "examflow/pkg/domain-errors"
)

// RequiredFields checks that each exam type's form payload carries its
// mandatory answers. Blank strings and nulls count as missing.
type RequiredFields struct {
	required map[models.ExamType][]string
}

// DefaultRequiredFields lists the mandatory payload keys per exam type.
var DefaultRequiredFields = map[models.ExamType][]string{
	models.ExamTypeSixMonthlyMDW:   {"height", "weight", "pregnancyTest", "syphilisTest", "hivTest", "chestXray"},
	models.ExamTypeFullMedicalExam: {"height", "weight", "bloodPressure", "visualAcuity", "hearing", "urineTest"},
	models.ExamTypeDriverMedical:   {"visualAcuity", "colourVision", "bloodPressure", "fitToDrive"},
	models.ExamTypeWorkPermit:      {"chestXray", "hivTest", "syphilisTest", "tuberculosis"},
	models.ExamTypeAgedDrivers:     {"visualAcuity", "bloodPressure", "amtScore", "fitToDrive"},
}

// NewRequiredFields builds a validator from required; nil uses DefaultRequiredFields.
func NewRequiredFields(required map[models.ExamType][]string) *RequiredFields {
	if required == nil {
		required = DefaultRequiredFields
	}
	return &RequiredFields{required: required}
}

// Validate returns a Validation domain error listing every missing field.
func (v *RequiredFields) Validate(_ context.Context, examType models.ExamType, payload map[string]any) error {
	fields, ok := v.required[examType]
	if !ok {
		return dErrors.Validation("exam payload is invalid", fmt.Sprintf("unsupported exam type %q", examType))
	}

	var reasons []string
	for _, field := range fields {
		if isBlank(payload[field]) {
			reasons = append(reasons, fmt.Sprintf("%s is required", field))
		}
	}
	if len(reasons) > 0 {
		sort.Strings(reasons)
		return dErrors.Validation("exam payload is invalid", reasons...)
	}
	return nil
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return govalidator.IsNull(strings.TrimSpace(val))
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}
