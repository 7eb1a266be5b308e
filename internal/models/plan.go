// Package models defines the core data structures for DocPipe.
//
// It includes the execution plan contract produced by plan interpretation,
// session and template entities, and the wire shapes shared across modules.
package models

import (
	"errors"
	"fmt"
)

// InputType defines the web form input type a question is rendered as.
type InputType string

const (
	// InputTypeText is a free-form text input.
	InputTypeText InputType = "text"
	// InputTypeSelect is a single-choice input constrained to Options.
	InputTypeSelect InputType = "select"
	// InputTypeDate is an ISO calendar date input (YYYY-MM-DD).
	InputTypeDate InputType = "date"
	// InputTypeNumber is a numeric input.
	InputTypeNumber InputType = "number"
	// InputTypeEmail is an email address input.
	InputTypeEmail InputType = "email"
	// InputTypeTel is a telephone number input.
	InputTypeTel InputType = "tel"
)

// IsValidInputType checks if the given input type is supported.
func IsValidInputType(it InputType) bool {
	switch it {
	case InputTypeText, InputTypeSelect, InputTypeDate, InputTypeNumber, InputTypeEmail, InputTypeTel:
		return true
	default:
		return false
	}
}

// Error variables for plan invariant violations
var (
	ErrEmptyQuestionID       = errors.New("question_id cannot be empty")
	ErrDuplicateQuestionID   = errors.New("duplicate question_id in execution plan")
	ErrUnknownTriggerField   = errors.New("triggered_by_field does not reference a known question")
	ErrMissingTriggerCond    = errors.New("trigger_condition is required for conditional questions")
	ErrUnknownDependency     = errors.New("depends_on does not reference a known question")
	ErrSelfDependency        = errors.New("question cannot depend on itself")
	ErrDependencyCycle       = errors.New("depends_on chain forms a cycle")
	ErrMissingSelectOptions  = errors.New("options are required for select questions")
)

// PlanError reports an execution plan that failed ingestion invariants.
// Plans that fail validation are fatal for session creation and never retried.
type PlanError struct {
	QuestionID string
	Err        error
}

func (e *PlanError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("malformed execution plan: %v", e.Err)
	}
	return fmt.Sprintf("malformed execution plan: question %q: %v", e.QuestionID, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// Question represents a base question in the plan's main sequence.
type Question struct {
	SequenceNumber  int       `json:"sequence_number,omitempty"`
	QuestionID      string    `json:"question_id"`
	QuestionText    string    `json:"question_text"`
	InputType       InputType `json:"input_type"`
	Options         []string  `json:"options,omitempty"`
	Required        *bool     `json:"required,omitempty"` // nil means required (default true)
	HelpText        string    `json:"help_text,omitempty"`
	Placeholder     string    `json:"placeholder,omitempty"`
	ValidationRules []string  `json:"validation_rules,omitempty"`
	MapsToField     string    `json:"maps_to_field,omitempty"`
	DependsOn       string    `json:"depends_on,omitempty"`
	PhaseName       string    `json:"phase_name,omitempty"`
}

// IsRequired reports whether the question must be answered. Questions
// default to required when the flag is absent from the plan JSON.
func (q *Question) IsRequired() bool {
	return q.Required == nil || *q.Required
}

// ConditionalQuestion is a question that only becomes eligible once its
// trigger condition is met by previously collected answers. All pairs in
// TriggerCondition must match (implicit AND).
type ConditionalQuestion struct {
	Question
	TriggeredByField string         `json:"triggered_by_field"`
	TriggerCondition map[string]any `json:"trigger_condition"`
}

// StructureAnalysis describes how the interpreted prompt configuration
// organizes its questions. Description doubles as a phase label fallback.
type StructureAnalysis struct {
	Type                string `json:"type,omitempty"`
	TotalQuestions      int    `json:"total_questions,omitempty"`
	HasConditionalLogic bool   `json:"has_conditional_logic,omitempty"`
	Description         string `json:"description,omitempty"`
}

// CrossFieldRule is an opaque cross-field validation rule used only by the
// optional secondary review pass.
type CrossFieldRule struct {
	Rule         string   `json:"rule"`
	Fields       []string `json:"fields,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// ValidationRuleSet holds free-form structured rules keyed by field.
type ValidationRuleSet struct {
	FieldValidations      map[string][]string `json:"field_validations,omitempty"`
	CrossFieldValidations []CrossFieldRule    `json:"cross_field_validations,omitempty"`
}

// ExecutionPlan is the structured, validated description of all questions
// for one document type. It is produced per-template by plan interpretation
// and is immutable once attached to a session.
type ExecutionPlan struct {
	StructureAnalysis    StructureAnalysis     `json:"structure_analysis,omitzero"`
	QuestionSequence     []Question            `json:"question_sequence"`
	ConditionalQuestions []ConditionalQuestion `json:"conditional_questions,omitempty"`
	ValidationRules      ValidationRuleSet     `json:"validation_rules,omitzero"`
	WelcomeMessage       string                `json:"welcome_message,omitempty"`
}

// FindQuestion looks up a question by id across the base sequence and the
// conditional questions. Returns nil when the id is unknown.
func (p *ExecutionPlan) FindQuestion(id string) *Question {
	for i := range p.QuestionSequence {
		if p.QuestionSequence[i].QuestionID == id {
			return &p.QuestionSequence[i]
		}
	}
	for i := range p.ConditionalQuestions {
		if p.ConditionalQuestions[i].QuestionID == id {
			return &p.ConditionalQuestions[i].Question
		}
	}
	return nil
}

// Validate enforces the plan ingestion invariants: unique question ids
// across the union of base and conditional questions, trigger fields that
// reference real questions, and acyclic depends_on references.
func (p *ExecutionPlan) Validate() error {
	ids := make(map[string]bool, len(p.QuestionSequence)+len(p.ConditionalQuestions))

	check := func(q *Question) error {
		if q.QuestionID == "" {
			return &PlanError{Err: ErrEmptyQuestionID}
		}
		if ids[q.QuestionID] {
			return &PlanError{QuestionID: q.QuestionID, Err: ErrDuplicateQuestionID}
		}
		ids[q.QuestionID] = true
		if q.InputType == InputTypeSelect && len(q.Options) == 0 {
			return &PlanError{QuestionID: q.QuestionID, Err: ErrMissingSelectOptions}
		}
		return nil
	}

	for i := range p.QuestionSequence {
		if err := check(&p.QuestionSequence[i]); err != nil {
			return err
		}
	}
	for i := range p.ConditionalQuestions {
		if err := check(&p.ConditionalQuestions[i].Question); err != nil {
			return err
		}
	}

	// Trigger references must point at known questions.
	for i := range p.ConditionalQuestions {
		cq := &p.ConditionalQuestions[i]
		if cq.TriggeredByField == "" || !ids[cq.TriggeredByField] {
			return &PlanError{QuestionID: cq.QuestionID, Err: ErrUnknownTriggerField}
		}
		if len(cq.TriggerCondition) == 0 {
			return &PlanError{QuestionID: cq.QuestionID, Err: ErrMissingTriggerCond}
		}
	}

	// Dependencies must reference known questions and form no cycles.
	deps := make(map[string]string)
	collect := func(q *Question) error {
		if q.DependsOn == "" {
			return nil
		}
		if q.DependsOn == q.QuestionID {
			return &PlanError{QuestionID: q.QuestionID, Err: ErrSelfDependency}
		}
		if !ids[q.DependsOn] {
			return &PlanError{QuestionID: q.QuestionID, Err: ErrUnknownDependency}
		}
		deps[q.QuestionID] = q.DependsOn
		return nil
	}
	for i := range p.QuestionSequence {
		if err := collect(&p.QuestionSequence[i]); err != nil {
			return err
		}
	}
	for i := range p.ConditionalQuestions {
		if err := collect(&p.ConditionalQuestions[i].Question); err != nil {
			return err
		}
	}
	for start := range deps {
		seen := map[string]bool{start: true}
		for cur := deps[start]; cur != ""; cur = deps[cur] {
			if seen[cur] {
				return &PlanError{QuestionID: start, Err: ErrDependencyCycle}
			}
			seen[cur] = true
		}
	}

	return nil
}
