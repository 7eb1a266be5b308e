package flow

import (
	"math"

	"github.com/docpipe/docpipe/internal/models"
)

// Progress computes the caller-facing progress for a session. The total is
// dynamic: it counts all base questions plus only those conditional
// questions whose trigger condition is currently satisfied and whose
// triggering field has been answered. It must be recomputed on every call,
// never cached, because answers can open new conditional branches.
//
// current may be nil when no question is pending (e.g. collection done).
func Progress(plan *models.ExecutionPlan, answeredIDs []string, collected map[string]any, current *models.QuestionView) models.Progress {
	if plan == nil {
		return models.Progress{}
	}
	answered := toSet(answeredIDs)

	total := len(plan.QuestionSequence)
	for i := range plan.ConditionalQuestions {
		cq := &plan.ConditionalQuestions[i]
		if !answered[cq.TriggeredByField] {
			continue
		}
		if EvaluateCondition(collected, cq.TriggerCondition) {
			total++
		}
	}

	answeredCount := len(answered)
	percent := 0.0
	if total > 0 {
		percent = round1(100 * float64(answeredCount) / float64(total))
	}

	phase := ""
	if current != nil && current.PhaseName != "" {
		phase = current.PhaseName
	} else if plan.StructureAnalysis.Description != "" {
		phase = plan.StructureAnalysis.Description
	}

	// current_step may overshoot total by one right at completion; that is
	// benign display noise and is intentionally not clamped.
	return models.Progress{
		CurrentStep:     answeredCount + 1,
		TotalSteps:      total,
		PercentComplete: percent,
		PhaseName:       phase,
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
