package flow

import (
	"testing"

	"github.com/docpipe/docpipe/internal/models"
)

// guarantorPlan is the fixture shared across the flow tests: two base
// questions and one conditional question opened by has_guarantor = "yes".
func guarantorPlan() *models.ExecutionPlan {
	return &models.ExecutionPlan{
		StructureAnalysis: models.StructureAnalysis{
			Type:                "sequential_questions",
			TotalQuestions:      2,
			HasConditionalLogic: true,
			Description:         "loan agreement",
		},
		QuestionSequence: []models.Question{
			{
				SequenceNumber: 1,
				QuestionID:     "has_guarantor",
				QuestionText:   "Does the loan have a guarantor?",
				InputType:      models.InputTypeSelect,
				Options:        []string{"yes", "no"},
				PhaseName:      "Parties",
			},
			{
				SequenceNumber: 2,
				QuestionID:     "client_email",
				QuestionText:   "What is the client's email address?",
				InputType:      models.InputTypeEmail,
				PhaseName:      "Parties",
			},
		},
		ConditionalQuestions: []models.ConditionalQuestion{
			{
				Question: models.Question{
					SequenceNumber: 3,
					QuestionID:     "guarantor_name",
					QuestionText:   "What is the guarantor's full name?",
					InputType:      models.InputTypeText,
					PhaseName:      "Parties",
				},
				TriggeredByField: "has_guarantor",
				TriggerCondition: map[string]any{"has_guarantor": "yes"},
			},
		},
	}
}

func TestFirstQuestions(t *testing.T) {
	plan := guarantorPlan()
	first := FirstQuestions(plan, 1)
	if len(first) != 1 {
		t.Fatalf("expected 1 opening question, got %d", len(first))
	}
	if first[0].FieldID != "has_guarantor" {
		t.Errorf("expected has_guarantor first, got %s", first[0].FieldID)
	}
}

func TestFirstQuestionsFallbackWhenAllDependent(t *testing.T) {
	plan := &models.ExecutionPlan{
		QuestionSequence: []models.Question{
			{QuestionID: "a", QuestionText: "A", DependsOn: "b"},
			{QuestionID: "b", QuestionText: "B", DependsOn: "a"},
		},
	}
	first := FirstQuestions(plan, 1)
	if len(first) != 1 || first[0].FieldID != "a" {
		t.Fatalf("expected fallback to first base question, got %+v", first)
	}
}

func TestNextQuestionsConditionalPriority(t *testing.T) {
	plan := guarantorPlan()
	answered := []string{"has_guarantor"}
	collected := map[string]any{"has_guarantor": "yes"}

	next := NextQuestions(plan, answered, collected, 2)
	if len(next) != 2 {
		t.Fatalf("expected 2 next questions, got %d", len(next))
	}
	// Triggered conditional questions come before remaining base questions.
	if next[0].FieldID != "guarantor_name" {
		t.Errorf("expected guarantor_name first, got %s", next[0].FieldID)
	}
	if next[1].FieldID != "client_email" {
		t.Errorf("expected client_email second, got %s", next[1].FieldID)
	}
}

func TestNextQuestionsUntriggeredConditionalSkipped(t *testing.T) {
	plan := guarantorPlan()
	answered := []string{"has_guarantor"}
	collected := map[string]any{"has_guarantor": "no"}

	next := NextQuestions(plan, answered, collected, 5)
	if len(next) != 1 {
		t.Fatalf("expected 1 next question, got %d", len(next))
	}
	if next[0].FieldID != "client_email" {
		t.Errorf("expected client_email, got %s", next[0].FieldID)
	}
}

func TestNextQuestionsSkipsAnsweredAndUnmetDependencies(t *testing.T) {
	plan := &models.ExecutionPlan{
		QuestionSequence: []models.Question{
			{QuestionID: "a", QuestionText: "A"},
			{QuestionID: "b", QuestionText: "B", DependsOn: "a"},
			{QuestionID: "c", QuestionText: "C"},
		},
	}
	next := NextQuestions(plan, nil, nil, 5)
	if len(next) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(next))
	}
	if next[0].FieldID != "a" || next[1].FieldID != "c" {
		t.Errorf("expected a then c, got %s then %s", next[0].FieldID, next[1].FieldID)
	}

	next = NextQuestions(plan, []string{"a"}, map[string]any{"a": "x"}, 5)
	if len(next) != 2 || next[0].FieldID != "b" {
		t.Errorf("expected b available after a answered, got %+v", next)
	}
}

func TestNextQuestionsCountLimit(t *testing.T) {
	plan := guarantorPlan()
	next := NextQuestions(plan, nil, nil, 1)
	if len(next) != 1 {
		t.Errorf("expected exactly 1 question, got %d", len(next))
	}
	if NextQuestions(plan, nil, nil, 0) != nil {
		t.Error("expected nil for non-positive count")
	}
	if NextQuestions(nil, nil, nil, 1) != nil {
		t.Error("expected nil for nil plan")
	}
}

func TestViewOf(t *testing.T) {
	q := &models.Question{
		QuestionID:   "client_email",
		QuestionText: "Email?",
		HelpText:     "Work email preferred",
		Placeholder:  "name@example.com",
		PhaseName:    "Parties",
	}
	v := ViewOf(q, map[string]any{"client_email": "a@b.co"})
	if v.FieldID != "client_email" || v.Label != "Email?" {
		t.Errorf("unexpected projection: %+v", v)
	}
	if v.InputType != models.InputTypeText {
		t.Errorf("expected default input type text, got %s", v.InputType)
	}
	if !v.Required {
		t.Error("unspecified required should default to true")
	}
	if v.CurrentValue != "a@b.co" {
		t.Errorf("expected current value from collected data, got %v", v.CurrentValue)
	}

	v = ViewOf(q, nil)
	if v.CurrentValue != nil {
		t.Errorf("expected nil current value, got %v", v.CurrentValue)
	}
}
