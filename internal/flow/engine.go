package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/docpipe/docpipe/internal/models"
)

// Enrichment timeouts. Enrichment is best-effort and must never block the
// core state machine; a slow collaborator degrades to a skipped suggestion
// or a warning, not an error.
const (
	// DefaultSuggestionTimeout bounds one suggestion lookup.
	DefaultSuggestionTimeout = 10 * time.Second
	// DefaultReviewTimeout bounds the optional secondary validation pass.
	DefaultReviewTimeout = 15 * time.Second
)

// Enricher supplies optional, best-effort additions to the core flow:
// answer suggestions and a secondary semantic review of submitted answers.
// Implementations may be slow or unavailable; the engine swallows their
// failures.
type Enricher interface {
	// SuggestAnswer returns a suggestion for the question given the data
	// collected so far, or "" when it has nothing useful to offer.
	SuggestAnswer(ctx context.Context, question models.QuestionView, collected map[string]any) (string, error)
	// ReviewAnswers performs a secondary validation pass. Findings are
	// reported as warnings only; they never block progression.
	ReviewAnswers(ctx context.Context, rules models.ValidationRuleSet, answers, collected map[string]any, inScope []models.QuestionView) (*models.ValidationResult, error)
}

// Engine orchestrates the per-submission update of a session: scope
// resolution, validation, merge, reselection, progress, and completion.
// It mutates the session it is handed; callers own persistence and must
// serialize concurrent submissions per session id.
type Engine struct {
	enricher         Enricher
	questionsPerStep int
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithEnricher attaches a best-effort enrichment collaborator.
func WithEnricher(e Enricher) Option {
	return func(eng *Engine) {
		eng.enricher = e
	}
}

// WithQuestionsPerStep sets how many questions are presented at a time.
func WithQuestionsPerStep(n int) Option {
	return func(eng *Engine) {
		if n > 0 {
			eng.questionsPerStep = n
		}
	}
}

// NewEngine creates a session engine. By default one question is presented
// per step and no enrichment is attached.
func NewEngine(opts ...Option) *Engine {
	eng := &Engine{questionsPerStep: 1}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// SubmitResult is the outcome of one answer submission.
type SubmitResult struct {
	ValidationPassed bool
	Errors           []models.FieldError
	Warnings         []models.FieldError
	NextQuestions    []models.QuestionView
	Progress         models.Progress
	IsComplete       bool
	Status           models.SessionStatus
}

// StartQuestions returns the opening questions and initial progress for a
// freshly created session.
func (e *Engine) StartQuestions(ctx context.Context, session *models.Session) ([]models.QuestionView, models.Progress) {
	first := FirstQuestions(session.Plan, e.questionsPerStep)
	e.enrich(ctx, first, session.CollectedData)
	var current *models.QuestionView
	if len(first) > 0 {
		current = &first[0]
	}
	return first, Progress(session.Plan, session.AnsweredQuestionIDs, session.CollectedData, current)
}

// SubmitAnswers processes one answer submission against the session.
//
// On validation failure the session is left untouched and the result
// carries the errors with recomputed (unchanged) progress. On success the
// answers are merged into collected data, the submitted field ids are
// appended to the answered set idempotently (re-submitting an answered id
// overwrites its value without duplicating the entry), next questions and
// progress are recomputed, and the session transitions to
// ready_for_generation when all currently required questions are answered.
func (e *Engine) SubmitAnswers(ctx context.Context, session *models.Session, answers map[string]any, inScope []models.QuestionView) (*SubmitResult, error) {
	if session.Status == models.SessionStatusCompleted {
		return nil, models.ErrSessionCompleted
	}
	if session.Plan == nil {
		return nil, models.ErrMissingPlan
	}

	if inScope == nil {
		inScope = e.resolveScope(session, answers)
	}

	validation := ValidateAnswers(answers, inScope)
	warnings := validation.Warnings
	if reviewed := e.review(ctx, session, answers, inScope); reviewed != nil {
		warnings = append(warnings, reviewed...)
	}

	if !validation.IsValid {
		slog.Debug("Engine.SubmitAnswers: validation failed", "session_id", session.SessionID, "errors", len(validation.Errors))
		return &SubmitResult{
			ValidationPassed: false,
			Errors:           validation.Errors,
			Warnings:         warnings,
			NextQuestions:    []models.QuestionView{},
			Progress:         Progress(session.Plan, session.AnsweredQuestionIDs, session.CollectedData, nil),
			IsComplete:       false,
			Status:           session.Status,
		}, nil
	}

	if session.CollectedData == nil {
		session.CollectedData = make(map[string]any, len(answers))
	}
	for _, q := range inScope {
		value, submitted := answers[q.FieldID]
		if !submitted {
			continue
		}
		session.CollectedData[q.FieldID] = value
		if !session.HasAnswered(q.FieldID) {
			session.AnsweredQuestionIDs = append(session.AnsweredQuestionIDs, q.FieldID)
		}
	}
	session.CurrentSequenceNumber++
	session.UpdatedAt = time.Now().UTC()

	next := NextQuestions(session.Plan, session.AnsweredQuestionIDs, session.CollectedData, e.questionsPerStep)
	e.enrich(ctx, next, session.CollectedData)

	complete := IsComplete(session.Plan, session.AnsweredQuestionIDs, session.CollectedData)
	if complete && session.Status == models.SessionStatusInProgress {
		session.Status = models.SessionStatusReadyForGeneration
		slog.Info("Engine.SubmitAnswers: session ready for generation", "session_id", session.SessionID)
	}

	var current *models.QuestionView
	if len(next) > 0 {
		current = &next[0]
	}

	return &SubmitResult{
		ValidationPassed: true,
		Errors:           []models.FieldError{},
		Warnings:         warnings,
		NextQuestions:    next,
		Progress:         Progress(session.Plan, session.AnsweredQuestionIDs, session.CollectedData, current),
		IsComplete:       complete,
		Status:           session.Status,
	}, nil
}

// resolveScope determines which plan questions the submitted answers are
// answering. The selector frontier is preferred; submitted fields outside
// the frontier are resolved directly against the plan so a caller answering
// ahead of the frontier is still validated against the right question.
// Fields that match nothing in the plan stay out of scope and are never
// evaluated.
func (e *Engine) resolveScope(session *models.Session, answers map[string]any) []models.QuestionView {
	scope := NextQuestions(session.Plan, session.AnsweredQuestionIDs, session.CollectedData, e.questionsPerStep)
	inScope := make(map[string]bool, len(scope))
	for _, q := range scope {
		inScope[q.FieldID] = true
	}
	for fieldID := range answers {
		if inScope[fieldID] {
			continue
		}
		if q := session.Plan.FindQuestion(fieldID); q != nil {
			scope = append(scope, ViewOf(q, session.CollectedData))
			inScope[fieldID] = true
		}
	}
	return scope
}

// enrich attaches best-effort suggestions to the given questions. Failures
// and timeouts are swallowed; suggestions must never block progression.
func (e *Engine) enrich(ctx context.Context, questions []models.QuestionView, collected map[string]any) {
	if e.enricher == nil || len(collected) == 0 {
		return
	}
	for i := range questions {
		sctx, cancel := context.WithTimeout(ctx, DefaultSuggestionTimeout)
		suggestion, err := e.enricher.SuggestAnswer(sctx, questions[i], collected)
		cancel()
		if err != nil {
			slog.Warn("Engine.enrich: suggestion lookup failed, continuing without", "field_id", questions[i].FieldID, "error", err)
			continue
		}
		questions[i].Suggestion = suggestion
	}
}

// review runs the optional secondary validation pass and converts its
// findings to warnings. A failure degrades to a single advisory warning.
func (e *Engine) review(ctx context.Context, session *models.Session, answers map[string]any, inScope []models.QuestionView) []models.FieldError {
	if e.enricher == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, DefaultReviewTimeout)
	defer cancel()
	reviewed, err := e.enricher.ReviewAnswers(rctx, session.Plan.ValidationRules, answers, session.CollectedData, inScope)
	if err != nil {
		slog.Warn("Engine.review: secondary validation unavailable", "session_id", session.SessionID, "error", err)
		return []models.FieldError{{Field: "", Message: "validation temporarily simplified", Severity: "warning"}}
	}
	if reviewed == nil {
		return nil
	}
	var warnings []models.FieldError
	warnings = append(warnings, reviewed.Warnings...)
	// Secondary findings never block: demote anything marked as an error.
	for _, fe := range reviewed.Errors {
		fe.Severity = "warning"
		warnings = append(warnings, fe)
	}
	return warnings
}
