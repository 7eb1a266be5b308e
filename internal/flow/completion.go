package flow

import "github.com/docpipe/docpipe/internal/models"

// IsComplete reports whether every currently required question has been
// answered: all required base questions, plus every required conditional
// question whose trigger condition is satisfied by the collected data. A
// required conditional question that was never triggered does not block
// completion. Pure and deterministic for identical inputs.
func IsComplete(plan *models.ExecutionPlan, answeredIDs []string, collected map[string]any) bool {
	if plan == nil {
		return false
	}
	answered := toSet(answeredIDs)

	for i := range plan.QuestionSequence {
		q := &plan.QuestionSequence[i]
		if q.IsRequired() && !answered[q.QuestionID] {
			return false
		}
	}

	for i := range plan.ConditionalQuestions {
		cq := &plan.ConditionalQuestions[i]
		if !cq.IsRequired() || answered[cq.QuestionID] {
			continue
		}
		if EvaluateCondition(collected, cq.TriggerCondition) {
			return false
		}
	}

	return true
}
