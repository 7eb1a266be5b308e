package flow

import (
	"log/slog"

	"github.com/docpipe/docpipe/internal/models"
)

// NextQuestions computes the next unanswered, dependency-satisfied
// questions, at most count of them. Triggered conditional questions take
// priority over base sequential questions in plan order; base questions
// whose depends_on is unmet are silently skipped.
//
// Returned views carry current_value only when the question was already
// answered; suggestions are attached by the caller, never computed here.
func NextQuestions(plan *models.ExecutionPlan, answeredIDs []string, collected map[string]any, count int) []models.QuestionView {
	if plan == nil || count <= 0 {
		return nil
	}
	answered := toSet(answeredIDs)
	var next []models.QuestionView

	for i := range plan.ConditionalQuestions {
		cq := &plan.ConditionalQuestions[i]
		if answered[cq.QuestionID] {
			continue
		}
		if EvaluateCondition(collected, cq.TriggerCondition) {
			next = append(next, ViewOf(&cq.Question, collected))
			if len(next) >= count {
				return next
			}
		}
	}

	for i := range plan.QuestionSequence {
		q := &plan.QuestionSequence[i]
		if answered[q.QuestionID] {
			continue
		}
		if q.DependsOn != "" && !answered[q.DependsOn] {
			continue
		}
		next = append(next, ViewOf(q, collected))
		if len(next) >= count {
			break
		}
	}

	return next
}

// FirstQuestions returns the opening questions for a fresh session. It
// prefers strictly dependency-free questions, but falls back to the first
// base question when dependency metadata filters everything out, so a
// conversation can always start. The fallback is a logged leniency for
// malformed plans, not the normal path.
func FirstQuestions(plan *models.ExecutionPlan, count int) []models.QuestionView {
	if plan == nil || len(plan.QuestionSequence) == 0 {
		return nil
	}
	first := NextQuestions(plan, nil, nil, count)
	if len(first) == 0 {
		slog.Warn("FirstQuestions: dependency filtering yielded no openers, falling back to first base question",
			"question_id", plan.QuestionSequence[0].QuestionID)
		first = []models.QuestionView{ViewOf(&plan.QuestionSequence[0], nil)}
	}
	return first
}

// ViewOf projects a plan question into its wire shape, populating
// current_value from collected data when the field was already answered.
func ViewOf(q *models.Question, collected map[string]any) models.QuestionView {
	v := models.QuestionView{
		FieldID:     q.QuestionID,
		Label:       q.QuestionText,
		InputType:   q.InputType,
		Options:     q.Options,
		Required:    q.IsRequired(),
		HelpText:    q.HelpText,
		Placeholder: q.Placeholder,
		PhaseName:   q.PhaseName,
	}
	if v.InputType == "" {
		v.InputType = models.InputTypeText
	}
	if collected != nil {
		if val, ok := collected[q.QuestionID]; ok {
			v.CurrentValue = val
		}
	}
	return v
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
