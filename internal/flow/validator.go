package flow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docpipe/docpipe/internal/models"
)

// Structural validation patterns. Email and date are format checks only;
// real calendar correctness and deliverability are out of scope.
var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	telPattern      = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	telStripPattern = regexp.MustCompile(`[\s\-()\.]`)
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ValidateAnswers runs fast structural validation over submitted answers.
//
// Scope is bounded: only fields present in BOTH answers and inScope are
// evaluated. A field marked required elsewhere in the plan but absent from
// this intersection never produces an error, so a partial submission is
// never rejected because of unrelated unanswered fields.
//
// Rules run per field in a fixed order and short-circuit to the next field
// on the first failure for that field. Warnings never block.
func ValidateAnswers(answers map[string]any, inScope []models.QuestionView) models.ValidationResult {
	result := models.ValidationResult{
		IsValid:  true,
		Errors:   []models.FieldError{},
		Warnings: []models.FieldError{},
	}

	for i := range inScope {
		q := &inScope[i]
		value, submitted := answers[q.FieldID]
		if !submitted {
			continue
		}
		if fieldErr := validateField(q, value); fieldErr != nil {
			result.Errors = append(result.Errors, *fieldErr)
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// validateField applies the ordered per-field rules and returns the first
// failure, or nil when the value passes.
func validateField(q *models.QuestionView, value any) *models.FieldError {
	if isEmpty(value) {
		if q.Required {
			return fieldError(q.FieldID, fmt.Sprintf("%s is required", q.Label))
		}
		// Optional and empty: nothing further to check.
		return nil
	}

	if q.InputType == models.InputTypeSelect && len(q.Options) > 0 {
		s, ok := value.(string)
		if !ok || !containsOption(q.Options, s) {
			return fieldError(q.FieldID, fmt.Sprintf("%s must be one of: %s", q.Label, strings.Join(q.Options, ", ")))
		}
		return nil
	}

	switch q.InputType {
	case models.InputTypeEmail:
		s, ok := value.(string)
		if !ok || !emailPattern.MatchString(s) {
			return fieldError(q.FieldID, fmt.Sprintf("%s must be a valid email address", q.Label))
		}
	case models.InputTypeTel:
		s, ok := value.(string)
		if !ok || !telPattern.MatchString(telStripPattern.ReplaceAllString(s, "")) {
			return fieldError(q.FieldID, fmt.Sprintf("%s must be a valid phone number", q.Label))
		}
	case models.InputTypeNumber:
		if !parsesAsNumber(value) {
			return fieldError(q.FieldID, fmt.Sprintf("%s must be a number", q.Label))
		}
	case models.InputTypeDate:
		s, ok := value.(string)
		if !ok || !datePattern.MatchString(s) {
			return fieldError(q.FieldID, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", q.Label))
		}
	}

	return nil
}

// isEmpty reports whether a submitted value counts as unanswered: nil, or
// a string that trims to empty.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func parsesAsNumber(value any) bool {
	switch v := value.(type) {
	case float64:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil
	default:
		return false
	}
}

func containsOption(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}

func fieldError(field, message string) *models.FieldError {
	return &models.FieldError{Field: field, Message: message, Severity: "error"}
}
