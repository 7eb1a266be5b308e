package flow

import (
	"testing"

	"github.com/docpipe/docpipe/internal/models"
)

func TestIsCompleteBaseQuestions(t *testing.T) {
	plan := guarantorPlan()

	if IsComplete(plan, []string{"has_guarantor"}, map[string]any{"has_guarantor": "no"}) {
		t.Error("incomplete base questions should not be complete")
	}
	if !IsComplete(plan, []string{"has_guarantor", "client_email"}, map[string]any{"has_guarantor": "no", "client_email": "a@b.co"}) {
		t.Error("all base answered with untriggered branch should be complete")
	}
}

func TestIsCompleteTriggeredConditionalBlocks(t *testing.T) {
	plan := guarantorPlan()
	answered := []string{"has_guarantor", "client_email"}
	collected := map[string]any{"has_guarantor": "yes", "client_email": "a@b.co"}

	if IsComplete(plan, answered, collected) {
		t.Error("triggered required conditional should block completion")
	}

	answered = append(answered, "guarantor_name")
	collected["guarantor_name"] = "Jane Roe"
	if !IsComplete(plan, answered, collected) {
		t.Error("expected complete once the conditional is answered")
	}
}

func TestIsCompleteOptionalQuestionsNeverBlock(t *testing.T) {
	optional := false
	plan := &models.ExecutionPlan{
		QuestionSequence: []models.Question{
			{QuestionID: "a", QuestionText: "A"},
			{QuestionID: "note", QuestionText: "Note", Required: &optional},
		},
	}
	if !IsComplete(plan, []string{"a"}, map[string]any{"a": "x"}) {
		t.Error("unanswered optional question should not block completion")
	}
}

func TestIsCompleteNilPlan(t *testing.T) {
	if IsComplete(nil, nil, nil) {
		t.Error("nil plan is never complete")
	}
}
