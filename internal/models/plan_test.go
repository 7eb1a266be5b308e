package models

import (
	"errors"
	"testing"
)

func validPlan() *ExecutionPlan {
	return &ExecutionPlan{
		QuestionSequence: []Question{
			{QuestionID: "party_name", QuestionText: "Name?", InputType: InputTypeText},
			{QuestionID: "loan_type", QuestionText: "Type?", InputType: InputTypeSelect, Options: []string{"secured", "unsecured"}},
		},
		ConditionalQuestions: []ConditionalQuestion{
			{
				Question:         Question{QuestionID: "collateral", QuestionText: "Collateral?", InputType: InputTypeText},
				TriggeredByField: "loan_type",
				TriggerCondition: map[string]any{"loan_type": "secured"},
			},
		},
	}
}

func TestPlanValidateAccepts(t *testing.T) {
	if err := validPlan().Validate(); err != nil {
		t.Errorf("expected valid plan, got %v", err)
	}
}

func TestPlanValidateEmptyQuestionID(t *testing.T) {
	plan := validPlan()
	plan.QuestionSequence[0].QuestionID = ""
	if err := plan.Validate(); !errors.Is(err, ErrEmptyQuestionID) {
		t.Errorf("expected ErrEmptyQuestionID, got %v", err)
	}
}

func TestPlanValidateDuplicateIDs(t *testing.T) {
	plan := validPlan()
	plan.ConditionalQuestions[0].QuestionID = "party_name"
	err := plan.Validate()
	if !errors.Is(err, ErrDuplicateQuestionID) {
		t.Fatalf("expected ErrDuplicateQuestionID, got %v", err)
	}
	var planErr *PlanError
	if !errors.As(err, &planErr) || planErr.QuestionID != "party_name" {
		t.Errorf("expected PlanError naming the question, got %v", err)
	}
}

func TestPlanValidateSelectNeedsOptions(t *testing.T) {
	plan := validPlan()
	plan.QuestionSequence[1].Options = nil
	if err := plan.Validate(); !errors.Is(err, ErrMissingSelectOptions) {
		t.Errorf("expected ErrMissingSelectOptions, got %v", err)
	}
}

func TestPlanValidateTriggerReferences(t *testing.T) {
	plan := validPlan()
	plan.ConditionalQuestions[0].TriggeredByField = "nonexistent"
	if err := plan.Validate(); !errors.Is(err, ErrUnknownTriggerField) {
		t.Errorf("expected ErrUnknownTriggerField, got %v", err)
	}

	plan = validPlan()
	plan.ConditionalQuestions[0].TriggerCondition = nil
	if err := plan.Validate(); !errors.Is(err, ErrMissingTriggerCond) {
		t.Errorf("expected ErrMissingTriggerCond, got %v", err)
	}
}

func TestPlanValidateDependencies(t *testing.T) {
	plan := validPlan()
	plan.QuestionSequence[1].DependsOn = "missing"
	if err := plan.Validate(); !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("expected ErrUnknownDependency, got %v", err)
	}

	plan = validPlan()
	plan.QuestionSequence[1].DependsOn = "loan_type"
	if err := plan.Validate(); !errors.Is(err, ErrSelfDependency) {
		t.Errorf("expected ErrSelfDependency, got %v", err)
	}

	plan = validPlan()
	plan.QuestionSequence[0].DependsOn = "loan_type"
	plan.QuestionSequence[1].DependsOn = "party_name"
	if err := plan.Validate(); !errors.Is(err, ErrDependencyCycle) {
		t.Errorf("expected ErrDependencyCycle, got %v", err)
	}
}

func TestFindQuestion(t *testing.T) {
	plan := validPlan()
	if q := plan.FindQuestion("party_name"); q == nil || q.QuestionID != "party_name" {
		t.Error("expected to find base question")
	}
	if q := plan.FindQuestion("collateral"); q == nil || q.QuestionID != "collateral" {
		t.Error("expected to find conditional question")
	}
	if q := plan.FindQuestion("nope"); q != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestQuestionIsRequired(t *testing.T) {
	q := Question{QuestionID: "a"}
	if !q.IsRequired() {
		t.Error("required should default to true")
	}
	optional := false
	q.Required = &optional
	if q.IsRequired() {
		t.Error("explicit false should be optional")
	}
	required := true
	q.Required = &required
	if !q.IsRequired() {
		t.Error("explicit true should be required")
	}
}

func TestIsValidInputType(t *testing.T) {
	for _, it := range []InputType{InputTypeText, InputTypeSelect, InputTypeDate, InputTypeNumber, InputTypeEmail, InputTypeTel} {
		if !IsValidInputType(it) {
			t.Errorf("expected %s to be valid", it)
		}
	}
	if IsValidInputType("checkbox") {
		t.Error("unexpected input type accepted")
	}
}
